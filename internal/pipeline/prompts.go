package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jatlaoui/ines/internal/domain"
)

// Prompt builders for the pipeline's agents. As in the analysis package,
// the wording is not a contract; only the JSON field names are, because
// the wire parsers bind them.

const critiqueInstruction = `أعد الإجابة بصيغة JSON فقط، دون أي شرح خارج الكائن، بالشكل التالي:
{"overall_score": 0.0, "issues": [], "strengths": []}
- overall_score: درجة بين 0 و 10.
- issues: قائمة المشاكل بترتيب أهميتها.
- strengths: قائمة مواطن القوة.`

const blueprintInstruction = `أعد الإجابة بصيغة JSON فقط، دون أي شرح خارج الكائن، بالشكل التالي:
{"title": "", "premise": "", "themes": [], "characters": [{"name": "", "role": "", "arc": ""}], "outline": ""}
- title: عنوان مبدئي للقصة.
- premise: فكرة القصة في جملة أو جملتين.
- themes: الموضوعات التي تطورها القصة.
- characters: الشخصيات مع دور كل منها وتحولها.
- outline: الخط السردي الكامل مرتبًا من البداية إلى النهاية.`

const unitInstruction = `أعد الإجابة بصيغة JSON فقط، دون أي شرح خارج الكائن، بالشكل التالي:
{"title": "", "body": ""}
- title: عنوان الفصل.
- body: نص الفصل كاملًا.`

// structuringBrief builds the shared assignment brief for the blueprint
// collaboration and for the degraded single-author fallback.
func structuringBrief(transcript string, analysis domain.AnalysisEnvelope, enrichment domain.ContextEnrichment, style string, length domain.TargetLength) string {
	var sb strings.Builder
	sb.WriteString("حوّل هذه الحكاية الشفوية إلى مخطط قصة مكتمل البنية.\n")
	sb.WriteString(fmt.Sprintf("الطول المطلوب: %s.\n", string(length)))
	if style != "" {
		sb.WriteString(fmt.Sprintf("الأسلوب المطلوب: %s.\n", style))
	}
	if digest := analysisDigest(analysis); digest != "" {
		sb.WriteString("خلاصة التحليل: ")
		sb.WriteString(digest)
		sb.WriteString("\n")
	}
	if digest := enrichmentDigest(enrichment); digest != "" {
		sb.WriteString("السياق المستنتج: ")
		sb.WriteString(digest)
		sb.WriteString("\n")
	}
	sb.WriteString("\nالنص الأصلي:\n")
	sb.WriteString(transcript)
	return sb.String()
}

// analysisDigest flattens an analysis envelope into one prompt-ready line.
func analysisDigest(env domain.AnalysisEnvelope) string {
	var parts []string
	switch {
	case env.Narrative != nil:
		n := env.Narrative
		if len(n.Characters) > 0 {
			parts = append(parts, "الشخصيات: "+strings.Join(n.Characters, "، "))
		}
		if len(n.Themes) > 0 {
			parts = append(parts, "الموضوعات: "+strings.Join(n.Themes, "، "))
		}
		if n.Tone != "" {
			parts = append(parts, "النبرة: "+n.Tone)
		}
		if n.Setting != "" {
			parts = append(parts, "المكان: "+n.Setting)
		}
		if len(n.KeyEvents) > 0 {
			parts = append(parts, "الأحداث المفصلية: "+strings.Join(n.KeyEvents, "؛ "))
		}
	case env.Cultural != nil:
		c := env.Cultural
		if len(c.Traditions) > 0 {
			parts = append(parts, "العادات: "+strings.Join(c.Traditions, "، "))
		}
		if c.Dialect != "" {
			parts = append(parts, "اللهجة: "+c.Dialect)
		}
		if len(c.Values) > 0 {
			parts = append(parts, "القيم: "+strings.Join(c.Values, "، "))
		}
	case env.Historical != nil:
		h := env.Historical
		if h.Era != "" {
			parts = append(parts, "الحقبة: "+h.Era)
		}
		if h.Period != "" {
			parts = append(parts, "الفترة: "+h.Period)
		}
	}
	return strings.Join(parts, ". ")
}

// enrichmentDigest flattens a context enrichment into one prompt-ready line.
func enrichmentDigest(enr domain.ContextEnrichment) string {
	var parts []string
	if enr.Era != "" {
		parts = append(parts, "الحقبة: "+enr.Era)
	}
	if enr.Setting != "" {
		parts = append(parts, "المكان والزمان: "+enr.Setting)
	}
	if enr.Register != "" {
		parts = append(parts, "السجل اللغوي: "+enr.Register)
	}
	if len(enr.CulturalMarkers) > 0 {
		parts = append(parts, "علامات الحقبة: "+strings.Join(enr.CulturalMarkers, "، "))
	}
	return strings.Join(parts, ". ")
}

// contextLines renders named auxiliary inputs the way the analysis package
// does: sorted by key so prompts are deterministic.
func contextLines(context map[string]string) string {
	if len(context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("\n\nسياق إضافي:")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("\n- %s: %s", k, context[k]))
	}
	return sb.String()
}

// registerPrompt asks for the linguistic register the prose should adopt,
// given the inferred placement.
func registerPrompt(era string, markers []string) (system, user string) {
	system = `أنت خبير لغوي في العربية وأساليبها عبر العصور. حدد السجل اللغوي الأنسب لسرد القصة.
أعد الإجابة بصيغة JSON فقط: {"register": "", "notes": []}
- register: وصف موجز للسجل اللغوي المقترح.
- notes: ملاحظات أسلوبية قصيرة للكاتب.`

	var sb strings.Builder
	sb.WriteString("الحقبة التاريخية: ")
	if era != "" {
		sb.WriteString(era)
	} else {
		sb.WriteString("غير محددة")
	}
	if len(markers) > 0 {
		sb.WriteString("\nالقرائن النصية: ")
		sb.WriteString(strings.Join(markers, "، "))
	}
	return system, sb.String()
}

// Collaboration prompts: the idea lead produces free-text idea documents,
// the structure partner always produces blueprint JSON.

func ideaDraftPrompt(brief string, context map[string]string) (system, user string) {
	system = "أنت مولد أفكار قصصية متخصص في الحكايات الشفوية العربية. اكتب وثيقة فكرة واضحة: جوهر القصة، صراعها، شخصياتها الرئيسية، وما يجعلها جديرة بالسرد. اكتب نثرًا حرًا دون JSON."
	return system, brief + contextLines(context)
}

func structureDraftPrompt(brief, leadDraft string, context map[string]string) (system, user string) {
	system = "أنت مهندس بنية قصصية. حوّل وثيقة الفكرة إلى مخطط قصة كامل.\n" + blueprintInstruction

	var sb strings.Builder
	sb.WriteString(brief)
	sb.WriteString(contextLines(context))
	sb.WriteString("\n\nوثيقة الفكرة:\n")
	sb.WriteString(leadDraft)
	return system, sb.String()
}

func leadReviewPrompt(ownIdea, partnerBlueprint string) (system, user string) {
	system = `أنت مولد الأفكار وتراجع مخطط البنية المقترح مقابل فكرتك. اذكر ما يخون الفكرة أو يضعفها.
أعد الإجابة بصيغة JSON فقط: {"issues": []}
- issues: قائمة ملاحظات محددة قابلة للتنفيذ، فارغة إذا كان المخطط وفيًا للفكرة.`

	var sb strings.Builder
	sb.WriteString("وثيقة الفكرة:\n")
	sb.WriteString(ownIdea)
	sb.WriteString("\n\nمخطط البنية المقترح:\n")
	sb.WriteString(partnerBlueprint)
	return system, sb.String()
}

func partnerRevisePrompt(ownBlueprint string, feedback domain.Feedback) (system, user string) {
	system = "أنت مهندس البنية. عدّل مخططك وفق الملاحظات مع الحفاظ على ما لم يُنتقد.\n" + blueprintInstruction

	var sb strings.Builder
	sb.WriteString("المخطط الحالي:\n")
	sb.WriteString(ownBlueprint)
	sb.WriteString("\n\nالملاحظات:")
	for _, issue := range feedback {
		sb.WriteString("\n- ")
		sb.WriteString(issue)
	}
	return system, sb.String()
}

func leadIncorporatePrompt(ownIdea, partnerRevised string) (system, user string) {
	system = "أنت مولد الأفكار. حدّث وثيقة فكرتك بحيث تستوعب المخطط المعدل وتبقى متسقة معه. اكتب نثرًا حرًا دون JSON."

	var sb strings.Builder
	sb.WriteString("وثيقة الفكرة الحالية:\n")
	sb.WriteString(ownIdea)
	sb.WriteString("\n\nالمخطط المعدل:\n")
	sb.WriteString(partnerRevised)
	return system, sb.String()
}

// blueprintReviewPrompt is the single critical review pass over the
// collaborated blueprint.
func blueprintReviewPrompt(bp domain.StoryBlueprint) (system, user string) {
	system = "أنت ناقد بنيوي صارم. قيّم المخطط من حيث عمق الشخصيات، وتماسك الحبكة، وحضور العناصر الثقافية.\n" + critiqueInstruction
	return system, blueprintText(bp)
}

// blueprintFallbackPrompt produces a blueprint from a single author when
// the collaboration failed.
func blueprintFallbackPrompt(brief string) (system, user string) {
	system = "أنت كاتب قصص محترف. ضع مخطط قصة كاملًا بنفسك.\n" + blueprintInstruction
	return system, brief
}

// Targeted refinement prompts, one per deficiency category. Each takes the
// current blueprint plus the review recommendation and returns a revised
// blueprint.

func deepenCharactersPrompt(bp domain.StoryBlueprint, recommendation string) (system, user string) {
	system = "أنت كاتب متخصص في بناء الشخصيات. عمّق شخصيات المخطط: دوافعها، تحولاتها، وعلاقاتها. أعد المخطط كاملًا بعد التعديل.\n" + blueprintInstruction
	return system, refinementUser(bp, recommendation)
}

func tightenPlotPrompt(bp domain.StoryBlueprint, recommendation string) (system, user string) {
	system = "أنت محرر حبكة. عالج الثغرات والتناقضات في الخط السردي وأحكم تسلسل الأحداث. أعد المخطط كاملًا بعد التعديل.\n" + blueprintInstruction
	return system, refinementUser(bp, recommendation)
}

func weaveCulturePrompt(bp domain.StoryBlueprint, recommendation string) (system, user string) {
	system = "أنت خبير في التراث الثقافي العربي. انسج العناصر الثقافية في المخطط: العادات، الأمثال، تفاصيل الحياة اليومية. أعد المخطط كاملًا بعد التعديل.\n" + blueprintInstruction
	return system, refinementUser(bp, recommendation)
}

func refinementUser(bp domain.StoryBlueprint, recommendation string) string {
	var sb strings.Builder
	sb.WriteString("التوصية: ")
	sb.WriteString(recommendation)
	sb.WriteString("\n\nالمخطط الحالي:\n")
	sb.WriteString(blueprintText(bp))
	return sb.String()
}

// blueprintText renders a blueprint for prompts in a stable order.
func blueprintText(bp domain.StoryBlueprint) string {
	var sb strings.Builder
	sb.WriteString("العنوان: " + bp.Title)
	sb.WriteString("\nالفكرة: " + bp.Premise)
	if len(bp.Themes) > 0 {
		sb.WriteString("\nالموضوعات: " + strings.Join(bp.Themes, "، "))
	}
	if len(bp.Characters) > 0 {
		sb.WriteString("\nالشخصيات:")
		for _, ch := range bp.Characters {
			sb.WriteString("\n- " + ch.Name)
			if ch.Role != "" {
				sb.WriteString(" (" + ch.Role + ")")
			}
			if ch.Arc != "" {
				sb.WriteString(": " + ch.Arc)
			}
		}
	}
	sb.WriteString("\nالخط السردي: " + bp.Outline)
	return sb.String()
}

// Generation prompts: one unit at a time against the blueprint.

func unitDraftPrompt(bp domain.StoryBlueprint, enr domain.ContextEnrichment, style string, index, count int, feedback domain.Feedback) (system, user string) {
	var sys strings.Builder
	sys.WriteString("أنت قاص عربي بارع. اكتب نص الفصل المطلوب وحده، نثرًا أدبيًا متقنًا، ملتزمًا بالمخطط وموقع الفصل في القصة.\n")
	if style != "" {
		sys.WriteString("الأسلوب المطلوب: " + style + ".\n")
	}
	if enr.Register != "" {
		sys.WriteString("السجل اللغوي: " + enr.Register + ".\n")
	}
	sys.WriteString(unitInstruction)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("الفصل %d من %d.\n\n", index+1, count))
	sb.WriteString(blueprintText(bp))
	if digest := enrichmentDigest(enr); digest != "" {
		sb.WriteString("\n\nالسياق: ")
		sb.WriteString(digest)
	}
	if len(feedback) > 0 {
		sb.WriteString("\n\nملاحظات الناقد على المحاولة السابقة، عالجها كلها:")
		for _, issue := range feedback {
			sb.WriteString("\n- ")
			sb.WriteString(issue)
		}
	}
	return sys.String(), sb.String()
}

// enhancePrompt weaves period- and tradition-appropriate texture into a
// freshly drafted unit.
func enhancePrompt(body, tradition string, markers []string) (system, user string) {
	system = `أنت خبير في التراث الثقافي العربي. أثرِ النص بتفاصيل ثقافية أصيلة تناسب حقبته دون تغيير أحداثه أو بنيته.
أعد الإجابة بصيغة JSON فقط: {"body": "", "note": ""}
- body: النص كاملًا بعد الإثراء.
- note: وصف موجز لما أُضيف.`

	var sb strings.Builder
	if tradition != "" {
		sb.WriteString("التقليد الثقافي المطلوب إبرازه: " + tradition + "\n")
	}
	if len(markers) > 0 {
		sb.WriteString("علامات الحقبة المتاحة: " + strings.Join(markers, "، ") + "\n")
	}
	sb.WriteString("\nالنص:\n")
	sb.WriteString(body)
	return system, sb.String()
}

// unitCritiquePrompt scores one unit against the blueprint.
func unitCritiquePrompt(body string, bp domain.StoryBlueprint) (system, user string) {
	system = "أنت ناقد أدبي دقيق. قيّم هذا الفصل: جودة النثر، الوفاء بالمخطط، وتماسك الأحداث داخله.\n" + critiqueInstruction

	var sb strings.Builder
	sb.WriteString("المخطط المرجعي:\n")
	sb.WriteString(blueprintText(bp))
	sb.WriteString("\n\nالفصل:\n")
	sb.WriteString(body)
	return system, sb.String()
}

// Polish prompts: whole-story refinement with a fixed per-cycle focus.

// polishFocusDirectives maps each focus to its cycle instruction.
var polishFocusDirectives = map[domain.PolishFocus]string{
	domain.FocusStructure: "ركّز على البنية: الإيقاع، ترتيب المشاهد، الانتقالات بين الفصول، وتوازن أطوالها.",
	domain.FocusContent:   "ركّز على المحتوى: عمق التفاصيل، اكتمال الأحداث، وإشباع دوافع الشخصيات.",
	domain.FocusStyle:     "ركّز على الأسلوب: اللغة، الإيقاع الصوتي، الصور، واتساق السجل اللغوي.",
}

func polishPrompt(focus domain.PolishFocus, units []string, issues domain.Feedback, style, register string) (system, user string) {
	var sys strings.Builder
	sys.WriteString("أنت محرر أدبي. حسّن القصة كاملة في جولة تحرير واحدة.\n")
	sys.WriteString(polishFocusDirectives[focus])
	sys.WriteString("\n")
	if style != "" {
		sys.WriteString("الأسلوب المطلوب: " + style + ".\n")
	}
	if register != "" {
		sys.WriteString("السجل اللغوي: " + register + ".\n")
	}
	sys.WriteString(fmt.Sprintf(`حافظ على عدد الفصول (%d) وحدودها.
أعد الإجابة بصيغة JSON فقط: {"units": []}
- units: نصوص الفصول كاملة بعد التحرير، بترتيبها الأصلي.`, len(units)))

	var sb strings.Builder
	if len(issues) > 0 {
		sb.WriteString("ملاحظات الناقد من الجولة السابقة:")
		for _, issue := range issues {
			sb.WriteString("\n- ")
			sb.WriteString(issue)
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString("فصول القصة:")
	for i, body := range units {
		sb.WriteString(fmt.Sprintf("\n\n[الفصل %d]\n", i+1))
		sb.WriteString(body)
	}
	return sys.String(), sb.String()
}

// storyCritiquePrompt scores the assembled story as one artifact.
func storyCritiquePrompt(body string) (system, user string) {
	system = "أنت ناقد أدبي محترف. قيّم القصة كاملة: بنيتها، محتواها، وأسلوبها.\n" + critiqueInstruction
	return system, "القصة:\n" + body
}
