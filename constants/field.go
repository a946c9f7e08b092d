package constants

// FieldName identifies a structured invoice field.
type FieldName string

const (
	FieldInvoiceCode      FieldName = "invoice_code"
	FieldInvoiceNumber    FieldName = "invoice_number"
	FieldInvoiceDate      FieldName = "invoice_date"
	FieldTotalAmount      FieldName = "total_amount"
	FieldTaxAmount        FieldName = "tax_amount"
	FieldAmountWithoutTax FieldName = "amount_without_tax"
	FieldTaxID            FieldName = "tax_id"
	FieldCheckCode        FieldName = "check_code"
	FieldSellerName       FieldName = "seller_name"
	FieldBuyerName        FieldName = "buyer_name"
	FieldMachineNumber    FieldName = "machine_number"
)

// AllFields is the fixed extraction order used for records and exports.
var AllFields = []FieldName{
	FieldInvoiceCode,
	FieldInvoiceNumber,
	FieldInvoiceDate,
	FieldCheckCode,
	FieldMachineNumber,
	FieldTotalAmount,
	FieldTaxAmount,
	FieldAmountWithoutTax,
	FieldTaxID,
	FieldSellerName,
	FieldBuyerName,
}

// FieldLabels are the column titles used in exports.
var FieldLabels = map[FieldName]string{
	FieldInvoiceCode:      "发票代码",
	FieldInvoiceNumber:    "发票号码",
	FieldInvoiceDate:      "开票日期",
	FieldCheckCode:        "校验码",
	FieldMachineNumber:    "机器编号",
	FieldTotalAmount:      "价税合计",
	FieldTaxAmount:        "税额",
	FieldAmountWithoutTax: "不含税金额",
	FieldTaxID:            "纳税人识别号",
	FieldSellerName:       "销售方名称",
	FieldBuyerName:        "购买方名称",
}

func (f FieldName) String() string { return string(f) }

// IsAmount reports whether the field holds a money value.
func (f FieldName) IsAmount() bool {
	return f == FieldTotalAmount || f == FieldTaxAmount || f == FieldAmountWithoutTax
}
