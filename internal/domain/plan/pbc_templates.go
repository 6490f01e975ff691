package plan

import "strings"

const defaultTemplateKey = "default"

// pbcTemplates maps a lowercased audit type to its PBC request descriptions
var pbcTemplates = map[string][]string{
	"procurement": {
		"سجل أوامر الشراء للفترة محل التدقيق",
		"العقود السارية مع الموردين",
		"محاضر لجان فتح المظاريف والترسية",
		"قائمة الموردين المعتمدين",
		"سياسة وإجراءات المشتريات المعتمدة",
	},
	"payroll": {
		"كشوف الرواتب الشهرية",
		"سجل الموظفين على رأس العمل",
		"اعتمادات التعديلات على الرواتب والبدلات",
		"مطابقات حسابات الرواتب البنكية",
	},
	"privacy": {
		"سجل أنشطة معالجة البيانات الشخصية",
		"سياسة حماية البيانات الشخصية",
		"سجل حوادث تسرب البيانات",
		"اتفاقيات مشاركة البيانات مع الجهات الخارجية",
	},
	"financial": {
		"ميزان المراجعة للفترة",
		"القوائم المالية المعتمدة",
		"المطابقات البنكية",
		"دفتر الأستاذ العام",
		"سجل الأصول الثابتة",
	},
	"it": {
		"قائمة المستخدمين والصلاحيات على الأنظمة",
		"سياسة وإجراءات إدارة التغيير",
		"سجلات النسخ الاحتياطي والاستعادة",
		"خطة استمرارية الأعمال والتعافي من الكوارث",
		"تقارير فحص الثغرات الأمنية",
	},
	defaultTemplateKey: {
		"السياسات والإجراءات ذات العلاقة",
		"الهيكل التنظيمي ومصفوفة الصلاحيات",
		"تقارير الأداء للفترة محل التدقيق",
	},
}

// PBCTemplateFor returns the request list for an audit type. Lookup is
// case-insensitive and unknown types get the default template.
func PBCTemplateFor(auditType string) []string {
	key := strings.ToLower(strings.TrimSpace(auditType))
	if t, ok := pbcTemplates[key]; ok {
		return t
	}
	return pbcTemplates[defaultTemplateKey]
}

// PBCTemplateTypes lists the audit types that have a dedicated template
func PBCTemplateTypes() []string {
	return []string{"Procurement", "Payroll", "Privacy", "Financial", "IT"}
}
