package content

import (
	"encoding/json"
	"strings"

	"github.com/lamim/uxie/pkg/models"
)

var apologies = map[models.Language]string{
	models.LanguageEnglish:    "Sorry, we could not generate interactive content for this chapter. Here is an overview of what it covers.",
	models.LanguageIndonesian: "Maaf, kami tidak dapat membuat konten interaktif untuk bab ini. Berikut ringkasan materi yang dibahas.",
}

// Fallback renders a fixed component listing the chapter title and its
// points. It calls neither the model nor the validator.
func Fallback(plan models.ChapterPlan, lang models.Language) models.ChapterContent {
	apology, ok := apologies[lang]
	if !ok {
		apology = apologies[models.LanguageEnglish]
	}

	var b strings.Builder
	b.WriteString("() => {\n")
	b.WriteString("  return (\n")
	b.WriteString("    <div className=\"p-6 space-y-4\">\n")
	b.WriteString("      <h1 className=\"text-2xl font-bold\">{" + jsString(plan.Caption) + "}</h1>\n")
	b.WriteString("      <p className=\"text-gray-600\">{" + jsString(apology) + "}</p>\n")
	b.WriteString("      <ul className=\"list-disc pl-6 space-y-1\">\n")
	for _, p := range plan.ContentPoints {
		b.WriteString("        <li>{" + jsString(p) + "}</li>\n")
	}
	b.WriteString("      </ul>\n")
	b.WriteString("    </div>\n")
	b.WriteString("  );\n")
	b.WriteString("}")

	return models.ChapterContent{
		Code:         b.String(),
		KeyTakeaways: firstPoints(plan.ContentPoints),
	}
}

// jsString quotes s as a JavaScript string literal
func jsString(s string) string {
	// JSON strings are valid JavaScript string literals
	out, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(out)
}
