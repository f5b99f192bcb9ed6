package scanning

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// OCR implements the Extractor interface by running Tesseract text
// recognition over the image and applying rule-based pattern matching to the
// recognized text. It needs no API key and works fully offline.
type OCR struct {
	language string
}

// NewOCR creates a new OCR Extractor instance. language is a Tesseract
// language code such as "eng".
func NewOCR(language string) *OCR {
	if language == "" {
		language = "eng"
	}
	return &OCR{language: language}
}

// Extract recognizes text in a receipt image and pulls amount, date, and
// store name out of it. All failures are reported through Extraction.Err.
func (o *OCR) Extract(ctx context.Context, image []byte, contentType string) Extraction {
	if err := ctx.Err(); err != nil {
		return failed(err)
	}

	pngData, err := prepareImageData(image, contentType)
	if err != nil {
		return failed(err)
	}

	text, err := o.recognize(pngData)
	if err != nil {
		return failed(fmt.Errorf("recognizing text: %w", err))
	}

	return extractFromText(text)
}

// recognize runs Tesseract over PNG bytes. A fresh client per call: gosseract
// clients are not safe for reuse across images.
func (o *OCR) recognize(pngData []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(o.language); err != nil {
		return "", fmt.Errorf("setting language: %w", err)
	}
	if err := client.SetImageFromBytes(pngData); err != nil {
		return "", fmt.Errorf("setting image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}
	return text, nil
}

// Close closes the OCR extractor (no-op, clients are per-call).
func (o *OCR) Close() error {
	return nil
}
