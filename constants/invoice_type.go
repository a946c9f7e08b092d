package constants

import "strings"

// InvoiceType is one entry of the invoice type code table.
type InvoiceType struct {
	Code string
	Name string
	// Fields the extractor looks for on this type.
	Fields []FieldName
	// Required fields; a missing one produces a warning.
	Required []FieldName
}

const (
	InvoiceTypeVATSpecial           = "01"
	InvoiceTypeMotorVehicle         = "03"
	InvoiceTypeVATGeneral           = "04"
	InvoiceTypeVATElectronicGeneral = "10"
	InvoiceTypeVATRoll              = "11"
	InvoiceTypeVATToll              = "14"
	InvoiceTypeUsedCar              = "15"
	InvoiceTypeVATElectronicSpecial = "20"
	InvoiceTypeDigitalGeneral       = "09"
	InvoiceTypeDigitalSpecial       = "99"
	InvoiceTypeDigitalAir           = "61"
	InvoiceTypeDigitalRailway       = "83"
	InvoiceTypeBlockchain           = "100"

	InvoiceTypeUnknown = "unknown"
)

var (
	generalFields = []FieldName{
		FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate, FieldCheckCode, FieldMachineNumber,
		FieldTotalAmount, FieldTaxAmount, FieldAmountWithoutTax, FieldTaxID, FieldSellerName, FieldBuyerName,
	}
	generalRequired = []FieldName{FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate, FieldCheckCode, FieldTotalAmount}

	specialFields = []FieldName{
		FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate,
		FieldTotalAmount, FieldTaxAmount, FieldAmountWithoutTax, FieldTaxID, FieldSellerName, FieldBuyerName,
	}
	specialRequired = []FieldName{
		FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate,
		FieldTotalAmount, FieldTaxAmount, FieldAmountWithoutTax, FieldTaxID,
	}

	digitalFields = []FieldName{
		FieldInvoiceNumber, FieldInvoiceDate,
		FieldTotalAmount, FieldTaxAmount, FieldAmountWithoutTax, FieldTaxID, FieldSellerName, FieldBuyerName,
	}
	ticketFields = []FieldName{FieldInvoiceNumber, FieldInvoiceDate, FieldTotalAmount, FieldTaxAmount, FieldTaxID, FieldBuyerName}
	basicRequired = []FieldName{FieldInvoiceNumber, FieldInvoiceDate, FieldTotalAmount}
)

// invoiceTypes is ordered the way the code table is published.
var invoiceTypes = []InvoiceType{
	{Code: InvoiceTypeVATSpecial, Name: "增值税专用发票", Fields: specialFields, Required: specialRequired},
	{
		Code: InvoiceTypeMotorVehicle, Name: "机动车销售统一发票",
		Fields: []FieldName{
			FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate, FieldMachineNumber,
			FieldTotalAmount, FieldTaxAmount, FieldAmountWithoutTax, FieldTaxID, FieldSellerName, FieldBuyerName,
		},
		Required: []FieldName{FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate, FieldTotalAmount},
	},
	{Code: InvoiceTypeVATGeneral, Name: "增值税普通发票", Fields: generalFields, Required: generalRequired},
	{Code: InvoiceTypeVATElectronicGeneral, Name: "增值税电子普通发票", Fields: generalFields, Required: generalRequired},
	{Code: InvoiceTypeVATRoll, Name: "增值税普通发票（卷式）", Fields: generalFields, Required: generalRequired},
	{Code: InvoiceTypeVATToll, Name: "增值税普通发票（通行费）", Fields: generalFields, Required: generalRequired},
	{
		Code: InvoiceTypeUsedCar, Name: "二手车销售统一发票",
		Fields: []FieldName{
			FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate, FieldTotalAmount, FieldTaxID, FieldSellerName, FieldBuyerName,
		},
		Required: []FieldName{FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate, FieldTotalAmount},
	},
	{Code: InvoiceTypeVATElectronicSpecial, Name: "增值税电子专用发票", Fields: specialFields, Required: specialRequired},
	{Code: InvoiceTypeDigitalSpecial, Name: "数电发票（增值税专用发票）", Fields: digitalFields,
		Required: []FieldName{FieldInvoiceNumber, FieldInvoiceDate, FieldTotalAmount, FieldTaxAmount, FieldAmountWithoutTax}},
	{Code: InvoiceTypeDigitalGeneral, Name: "数电发票（普通发票）", Fields: digitalFields, Required: basicRequired},
	{Code: InvoiceTypeDigitalAir, Name: "数电发票（航空运输电子客票行程单）", Fields: ticketFields, Required: basicRequired},
	{Code: InvoiceTypeDigitalRailway, Name: "数电发票（铁路电子客票）", Fields: ticketFields, Required: basicRequired},
	{
		Code: InvoiceTypeBlockchain, Name: "区块链发票",
		Fields: []FieldName{
			FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate, FieldCheckCode,
			FieldTotalAmount, FieldTaxAmount, FieldAmountWithoutTax, FieldTaxID, FieldSellerName, FieldBuyerName,
		},
		Required: []FieldName{FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate, FieldTotalAmount},
	},
}

// UnknownInvoiceType is returned when no keyword matched. Every field except
// the machine number is attempted and nothing is required.
var UnknownInvoiceType = InvoiceType{
	Code: InvoiceTypeUnknown,
	Name: "未知类型",
	Fields: []FieldName{
		FieldInvoiceCode, FieldInvoiceNumber, FieldInvoiceDate, FieldCheckCode,
		FieldTotalAmount, FieldTaxAmount, FieldAmountWithoutTax, FieldTaxID, FieldSellerName, FieldBuyerName,
	},
}

var invoiceTypesByCode = func() map[string]InvoiceType {
	m := make(map[string]InvoiceType, len(invoiceTypes)+1)
	for _, t := range invoiceTypes {
		m[t.Code] = t
	}
	m[UnknownInvoiceType.Code] = UnknownInvoiceType
	return m
}()

// InvoiceTypes returns a copy of the code table in publication order.
func InvoiceTypes() []InvoiceType {
	out := make([]InvoiceType, len(invoiceTypes))
	copy(out, invoiceTypes)
	return out
}

// LookupInvoiceType resolves a type code, including the unknown type.
func LookupInvoiceType(code string) (InvoiceType, bool) {
	t, ok := invoiceTypesByCode[strings.TrimSpace(code)]
	return t, ok
}

// InvoiceTypeName returns the display name for code, or the unknown name.
func InvoiceTypeName(code string) string {
	if t, ok := LookupInvoiceType(code); ok {
		return t.Name
	}
	return UnknownInvoiceType.Name
}

// Applies reports whether field is extracted for this type.
func (t InvoiceType) Applies(field FieldName) bool {
	for _, f := range t.Fields {
		if f == field {
			return true
		}
	}
	return false
}
