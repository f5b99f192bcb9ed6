package scanning

// receiptScanPrompt is the shared prompt used by the vision-model strategies.
const receiptScanPrompt = `You are analyzing a photograph of a receipt or invoice. Carefully read all text in the image and extract the following information:

1. **Store name**: the merchant, store, or business name, usually the largest text at the top of the receipt.

2. **Total amount**: the final total or amount due, usually at the bottom, often labeled "TOTAL", "Grand Total", "Amount Due" or similar. Extract only the numeric value (e.g., 42.75 for $42.75).

3. **Date**: the transaction or purchase date, converted to ISO 8601 format (YYYY-MM-DD).

4. **Currency**: the 3-letter ISO 4217 currency code. Default to USD if uncertain.

5. **Summary**: one short sentence describing what was purchased.

Return ONLY valid JSON in this exact format:
{
  "store_name": "...",
  "total_amount": 0.00,
  "date": "YYYY-MM-DD",
  "currency": "USD",
  "summary": "...",
  "items": ["..."],
  "tax_amount": 0.00,
  "payment_method": "..."
}

Important:
- total_amount and tax_amount must be numbers, not strings
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
