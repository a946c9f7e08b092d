package classify

import "github.com/joseph-ayodele/invoice-ocr/constants"

// Keyword is a cue phrase and its weight for one invoice type. Phrases are
// written in folded (half-width) form and matched case-insensitively.
type Keyword struct {
	Text   string
	Weight float64
}

// TypeKeywords is the keyword table of one invoice type.
type TypeKeywords struct {
	Code     string
	Keywords []Keyword
}

// DefaultTables returns the built-in keyword tables in code-table order.
func DefaultTables() []TypeKeywords {
	out := make([]TypeKeywords, len(defaultTables))
	for i, t := range defaultTables {
		out[i] = TypeKeywords{Code: t.Code, Keywords: append([]Keyword(nil), t.Keywords...)}
	}
	return out
}

var defaultTables = []TypeKeywords{
	{Code: constants.InvoiceTypeVATSpecial, Keywords: []Keyword{
		{"增值税专用发票", 6}, {"专用发票", 4}, {"抵扣联", 3}, {"密码区", 2},
		{"发票联", 1}, {"纳税人识别号", 1}, {"税额", 1}, {"价税合计", 1}, {"发票代码", 1},
	}},
	{Code: constants.InvoiceTypeMotorVehicle, Keywords: []Keyword{
		{"机动车销售统一发票", 6}, {"机动车", 4}, {"车辆识别代号", 3}, {"发动机号码", 3},
		{"厂牌型号", 2}, {"合格证号", 2}, {"车架号", 2}, {"发票代码", 1},
	}},
	{Code: constants.InvoiceTypeVATGeneral, Keywords: []Keyword{
		{"增值税普通发票", 6}, {"普通发票", 3}, {"校验码", 2}, {"机器编号", 2},
		{"密码区", 1}, {"发票代码", 1}, {"发票号码", 1}, {"开票日期", 1},
	}},
	{Code: constants.InvoiceTypeVATElectronicGeneral, Keywords: []Keyword{
		{"增值税电子普通发票", 6}, {"电子普通发票", 5}, {"电子发票", 3}, {"校验码", 2},
		{"机器编号", 1}, {"发票代码", 1}, {"发票号码", 1}, {"开票日期", 1},
	}},
	{Code: constants.InvoiceTypeVATRoll, Keywords: []Keyword{
		{"卷式", 6}, {"卷票", 5}, {"普通发票", 2}, {"校验码", 1}, {"机器编号", 1}, {"发票代码", 1},
	}},
	{Code: constants.InvoiceTypeVATToll, Keywords: []Keyword{
		{"通行费", 6}, {"车牌号", 3}, {"通行日期起", 3}, {"通行日期止", 3},
		{"收费公路", 2}, {"电子普通发票", 2}, {"普通发票", 1},
	}},
	{Code: constants.InvoiceTypeUsedCar, Keywords: []Keyword{
		{"二手车销售统一发票", 6}, {"二手车", 5}, {"登记证号", 3}, {"二手车市场", 3},
		{"车价合计", 3}, {"车辆识别代号", 2}, {"转入地车辆管理所名称", 2},
	}},
	{Code: constants.InvoiceTypeVATElectronicSpecial, Keywords: []Keyword{
		{"增值税电子专用发票", 6}, {"电子专用发票", 5}, {"专用发票", 2}, {"电子发票", 2},
		{"纳税人识别号", 1}, {"税额", 1},
	}},
	{Code: constants.InvoiceTypeDigitalSpecial, Keywords: []Keyword{
		{"电子发票(增值税专用发票)", 6}, {"数电", 3}, {"全电", 3}, {"增值税专用发票", 2},
		{"统一社会信用代码", 2}, {"电子发票", 2},
	}},
	{Code: constants.InvoiceTypeDigitalGeneral, Keywords: []Keyword{
		{"电子发票(普通发票)", 6}, {"数电", 3}, {"全电", 3}, {"普通发票", 2},
		{"统一社会信用代码", 2}, {"电子发票", 2},
	}},
	{Code: constants.InvoiceTypeDigitalAir, Keywords: []Keyword{
		{"航空运输电子客票行程单", 6}, {"电子客票号码", 4}, {"航班号", 3}, {"民航发展基金", 3},
		{"承运人", 2}, {"座位等级", 2}, {"燃油附加费", 2}, {"旅客姓名", 2},
	}},
	{Code: constants.InvoiceTypeDigitalRailway, Keywords: []Keyword{
		{"铁路电子客票", 6}, {"电子客票", 3}, {"中国铁路", 3}, {"车次", 2},
		{"二等座", 2}, {"一等座", 2}, {"检票口", 2}, {"12306", 2},
	}},
	{Code: constants.InvoiceTypeBlockchain, Keywords: []Keyword{
		{"区块链", 6}, {"区块链电子发票", 5}, {"电子普通发票", 1}, {"发票代码", 1}, {"校验码", 1},
	}},
}
