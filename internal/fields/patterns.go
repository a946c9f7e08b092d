package fields

import (
	"regexp"

	"github.com/joseph-ayodele/invoice-ocr/constants"
)

// cue locates a field value. With a label, the value regex is applied to the
// text right after the label and, when that is empty, to the start of the
// next region in reading order. Without a label, the value regex is searched
// anywhere in a region.
type cue struct {
	label *regexp.Regexp
	value *regexp.Regexp
}

type fieldSpec struct {
	name     constants.FieldName
	cues     []cue
	validate validator
}

const (
	valueCode   = `^[\s:]*([0-9A-Za-z]+)`
	valueGroups = `^[\s:]*([0-9A-Za-z]+(?: [0-9A-Za-z]+)*)`
	valueAmount = `^[\s:()]*(?:[¥$]|RMB|CNY)?\s*(-?\d[\d,]*(?:\.\d+)?)`
	valueDate   = `^[\s:]*(\d{4}\s*[年\-/.]\s*\d{1,2}\s*[月\-/.]\s*\d{1,2}\s*日?|\d{8})`
	valueName   = `^[\s:]*(?:名称[\s:]*)?([^\s:][^:]*?)\s*(?:纳税人识别号|统一社会信用代码|地址|开户行|$)`
)

var reLabelOnlyRest = regexp.MustCompile(`^[\s:()]*$`)

func labeled(label, value string) cue {
	return cue{label: regexp.MustCompile(label), value: regexp.MustCompile(value)}
}

func unlabeled(value string) cue {
	return cue{value: regexp.MustCompile(value)}
}

// specs is built once and shared read-only.
var specs = map[constants.FieldName]fieldSpec{
	constants.FieldInvoiceCode: {
		cues:     []cue{labeled(`发票代码`, valueCode)},
		validate: digitsOf(10, 12),
	},
	constants.FieldInvoiceNumber: {
		cues: []cue{
			labeled(`发票号码`, valueCode),
			labeled(`(?i)\bNo[.:]`, valueCode),
		},
		validate: digitsOf(8, 20),
	},
	constants.FieldInvoiceDate: {
		cues: []cue{
			labeled(`开票日期|填发日期|日期`, valueDate),
			unlabeled(`(\d{4}年\d{1,2}月\d{1,2}日)`),
		},
		validate: validateDate,
	},
	constants.FieldCheckCode: {
		cues:     []cue{labeled(`校验码`, valueGroups)},
		validate: validateCheckCode,
	},
	constants.FieldMachineNumber: {
		cues:     []cue{labeled(`机器编号`, valueCode)},
		validate: digitsOf(12),
	},
	constants.FieldTotalAmount: {
		cues:     []cue{labeled(`价税合计|总计|总金额|小写`, valueAmount)},
		validate: validateAmount,
	},
	constants.FieldTaxAmount: {
		cues:     []cue{labeled(`合计税额|税额`, valueAmount)},
		validate: validateAmount,
	},
	constants.FieldAmountWithoutTax: {
		cues:     []cue{labeled(`不含税金额|金额合计|合计金额|不含税`, valueAmount)},
		validate: validateAmount,
	},
	constants.FieldTaxID: {
		cues:     []cue{labeled(`纳税人识别号|统一社会信用代码|税号`, `^[\s:/]*([0-9A-Za-z]+)`)},
		validate: validateTaxID,
	},
	constants.FieldSellerName: {
		cues:     []cue{labeled(`销售方名称|销方名称|销售方|销货单位|收款单位`, valueName)},
		validate: validateName,
	},
	constants.FieldBuyerName: {
		cues:     []cue{labeled(`购买方名称|购方名称|购买方|购货单位|付款单位`, valueName)},
		validate: validateName,
	},
}

func init() {
	for name, s := range specs {
		s.name = name
		specs[name] = s
	}
}
