package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// Prompt builders for the three analyzer kinds. The wording is not a
// contract; only the JSON field names are, because the parser binds them.

const envelopeInstruction = `أعد الإجابة بصيغة JSON فقط، دون أي شرح خارج الكائن، بالشكل التالي:
{"analysis": {%s}, "confidence_score": 0.0, "recommendations": []}
- confidence_score: رقم بين 0 و 1 يقيس موثوقية التحليل.
- recommendations: قائمة اقتراحات متابعة قصيرة.`

func narrativePrompt(req Request) (system, user string) {
	var sb strings.Builder
	sb.WriteString("أنت محلل سردي متخصص في الحكايات الشفوية العربية. حلل النص واستخرج بنيته السردية.\n")
	sb.WriteString(fmt.Sprintf(envelopeInstruction,
		`"characters": [], "themes": [], "tone": "", "key_events": [], "setting": ""`))
	sb.WriteString("\n- characters: أسماء الشخصيات الواردة في النص.")
	sb.WriteString("\n- themes: الموضوعات السردية الرئيسية.")
	sb.WriteString("\n- tone: النبرة العاطفية العامة.")
	sb.WriteString("\n- key_events: الأحداث المفصلية بترتيب ورودها.")
	sb.WriteString("\n- setting: مكان الحكاية وبيئتها.")
	return sb.String(), userMessage(req)
}

func culturalPrompt(req Request) (system, user string) {
	var sb strings.Builder
	sb.WriteString("أنت خبير في التراث الثقافي العربي. حلل النص واستخرج إشاراته الثقافية.\n")
	sb.WriteString(fmt.Sprintf(envelopeInstruction,
		`"traditions": [], "dialect": "", "values": [], "symbols": []`))
	sb.WriteString("\n- traditions: الممارسات والعادات المذكورة.")
	sb.WriteString("\n- dialect: اللهجة أو مستوى الخطاب.")
	sb.WriteString("\n- values: القيم الثقافية التي يعبر عنها النص.")
	sb.WriteString("\n- symbols: الأشياء أو الأماكن أو العبارات ذات الدلالة الثقافية.")
	return sb.String(), userMessage(req)
}

func historicalPrompt(req Request) (system, user string) {
	var sb strings.Builder
	sb.WriteString("أنت مؤرخ متخصص في التاريخ الاجتماعي العربي. حدد الموضع التاريخي للنص.\n")
	sb.WriteString(fmt.Sprintf(envelopeInstruction,
		`"era": "", "period": "", "markers": []`))
	sb.WriteString("\n- era: الحقبة التاريخية العامة.")
	sb.WriteString("\n- period: المدى الزمني التقريبي داخل الحقبة.")
	sb.WriteString("\n- markers: القرائن النصية الداعمة لهذا التحديد.")
	return sb.String(), userMessage(req)
}

func userMessage(req Request) string {
	var sb strings.Builder
	sb.WriteString("النص المطلوب تحليله:\n")
	sb.WriteString(req.Text)

	if req.Focus != "" {
		sb.WriteString("\n\nالتركيز الثقافي المطلوب: ")
		sb.WriteString(req.Focus)
	}

	if len(req.Context) > 0 {
		keys := make([]string, 0, len(req.Context))
		for k := range req.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\n\nسياق إضافي:")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("\n- %s: %s", k, req.Context[k]))
		}
	}
	return sb.String()
}
