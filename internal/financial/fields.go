package financial

// DefaultIncomeStatementFields are the income statement rows read in "all" mode.
var DefaultIncomeStatementFields = []string{
	"รายได้หลัก",
	"รายได้รวม",
	"ต้นทุนขาย",
	"กำไร(ขาดทุน) ขั้นต้น",
	"ค่าใช้จ่ายในการขายและบริหาร",
	"รายจ่ายรวม",
	"ดอกเบี้ยจ่าย",
	"กำไร(ขาดทุน) ก่อนภาษี",
	"ภาษีเงินได้",
	"กำไร(ขาดทุน) สุทธิ",
}

// DefaultBalanceSheetFields are the balance sheet rows read in "all" mode.
var DefaultBalanceSheetFields = []string{
	"ลูกหนี้การค้าสุทธิ",
	"สินค้าคงเหลือ",
	"สินทรัพย์หมุนเวียน",
	"ที่ดิน อาคารและอุปกรณ์",
	"สินทรัพย์ไม่หมุนเวียน",
	"สินทรัพย์รวม",
	"หนี้สินหมุนเวียน",
	"หนี้สินไม่หมุนเวียน",
	"หนี้สินรวม",
	"ส่วนของผู้ถือหุ้น",
	"หนี้สินรวมและส่วนของผู้ถือหุ้น",
}
