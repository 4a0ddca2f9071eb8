package extractor

import (
	"fmt"

	"docbench/internal/domain"
)

// InvoiceSchema is the target structure for invoice extraction.
const InvoiceSchema = `{
  "sellerInfo": {
    "name": "", "address1": "", "address2": "", "mobile": "", "phone": "", "gstin": "",
    "pan": "", "email": "", "city": "", "district": "", "state": "", "pincode": ""
  },
  "BuyerInfo": {
    "name": "", "address1": "", "address2": "", "mobile": "", "phone": "", "gstin": "",
    "pan": "", "aadhaar": "", "city": "", "district": "", "state": "", "pincode": ""
  },
  "shippedToInfo": {
    "name": "", "address1": "", "address2": "", "mobile": "", "phone": "", "gstin": "",
    "pan": "", "aadhaar": "", "city": "", "district": "", "state": "", "pincode": ""
  },
  "InvoiceDetails": {
    "invoiceDate": "", "invoiceNumber": "", "invoicetype": "", "invoiceMode": "", "transactionType": "",
    "invoiceDueDate": "", "quotationNumber": "", "quotationDate": "", "ewayNumber": "",
    "ewayDate": "", "ewayValidity": "", "IRN": "",
    "itemDetails": [
      {
        "itemName": "", "hsnCode": "", "quantity": "", "quantity1": "", "rate": "", "totalamount": "",
        "batchNumber": "", "discountPercent": "", "discountAmount": "", "freightAmount": "",
        "MfgDate": "", "ExpiryDate": "", "freeQty": "", "cgstRate": "", "sgstRate": "", "igstRate": "",
        "ItemtaxableAmount": "", "cgstAmount": "", "sgstAmount": "", "igstAmount": "", "Amount": ""
      }
    ],
    "charges": [ { "chargeName": "", "chargeAmount": "", "chargeType": "" } ],
    "invoiceSummary": {
      "taxableAmount": "", "totalCGST": "", "totalSGST": "", "totalIGST": "", "totalAmount": ""
    }
  },
  "accuracyLevel": "", "isDuplicate": ""
}`

// BankStatementSchema is the target structure for bank statement extraction.
const BankStatementSchema = `{
  "Countoftransactions": 0,
  "transactions": [
    {
      "date": "",
      "description": "",
      "ChequeNo": "",
      "debit": 0,
      "credit": 0
    }
  ]
}`

// Schema returns the target structure for a document type.
func Schema(docType domain.DocumentType) string {
	if docType == domain.DocumentTypeBankStatement {
		return BankStatementSchema
	}
	return InvoiceSchema
}

// BuildPrompt returns the extraction prompt sent alongside the document.
func BuildPrompt(docType domain.DocumentType) string {
	if docType == domain.DocumentTypeBankStatement {
		return `You are an expert in bank statement extraction. Given the attached document (which may contain multiple pages),
return a JSON object in the following format:

` + BankStatementSchema + `

Rules:
- Return all transactions from the document
- Countoftransactions must be the length of the "transactions" array
- Leave any missing values as empty strings
- Return only valid JSON, with no extra text`
	}
	return `You are an expert in invoice extraction. Given the attached document, extract and return a JSON object
with the following structured format:

` + InvoiceSchema + `

Only return valid JSON. Leave missing fields as empty strings.`
}

// BuildRestructurePrompt asks a text model to reshape OCR or analyzer output
// into the schema for docType.
func BuildRestructurePrompt(docType domain.DocumentType, extracted string) string {
	return fmt.Sprintf(`Given the following extracted data:

%s

Restructure it into this JSON format. Leave any missing fields as empty strings:

%s

Only return valid JSON.`, extracted, Schema(docType))
}
