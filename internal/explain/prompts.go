package explain

import (
	"fmt"

	"github.com/Waeei/waeei-backend/internal/domain"
)

const systemPrompt = `أنت مساعد أمني يشرح نتائج فحص الروابط لمستخدمين غير متخصصين.

المتطلبات:
- اكتب بالعربية الفصحى المبسطة
- جملتان أو ثلاث جمل فقط
- لا تغيّر الحكم المعطى ولا تشكك فيه
- إذا كان الرابط ضارًا فانصح بعدم فتحه وعدم إدخال أي بيانات
- إذا كان الرابط آمنًا فذكّر بالحذر العام دون مبالغة
- لا تستخدم تنسيق Markdown`

func userPrompt(verdict domain.Verdict, u domain.NormalizedURL) string {
	label := "آمن"
	if verdict == domain.VerdictMalicious {
		label = "ضار"
	}
	return fmt.Sprintf("الرابط: %s\nالحكم: %s (%s)\nاشرح هذا الحكم للمستخدم.", u.Canonical, label, verdict)
}
