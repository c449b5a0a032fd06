package generator

import (
	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/pkg/models"
)

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

var quizSchema = &api.Schema{
	Name:        "chapter_quiz",
	Description: "Quiz questions for one course chapter",
	Definition: map[string]any{
		"type":     "object",
		"required": []string{"questions"},
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"type", "question", "correctAnswer"},
					"properties": map[string]any{
						"type":            map[string]any{"type": "string", "enum": []string{"multiple_choice", "open_text"}},
						"question":        stringProp("The question text"),
						"answerA":         stringProp("Option a (multiple_choice only)"),
						"answerB":         stringProp("Option b (multiple_choice only)"),
						"answerC":         stringProp("Option c (multiple_choice only)"),
						"answerD":         stringProp("Option d (multiple_choice only)"),
						"correctAnswer":   stringProp("a, b, c or d for multiple_choice; a reference answer for open_text"),
						"explanation":     stringProp("Why the correct answer is correct"),
						"gradingCriteria": stringProp("How to award points (open_text only)"),
					},
				},
			},
		},
	},
}

var planSchema = &api.Schema{
	Name:        "course_plan",
	Description: "Chapter outline for a course",
	Definition: map[string]any{
		"type":     "object",
		"required": []string{"chapters"},
		"properties": map[string]any{
			"chapters": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"caption", "contentPoints", "timeMinutes"},
					"properties": map[string]any{
						"caption": stringProp("Chapter title"),
						"contentPoints": map[string]any{
							"type":     "array",
							"items":    map[string]any{"type": "string"},
							"minItems": models.MinContentPoints,
							"maxItems": models.MaxContentPoints,
						},
						"timeMinutes": map[string]any{"type": "integer", "minimum": 1},
						"note":        stringProp("Optional note for the chapter author"),
					},
				},
			},
		},
	},
}

var infoSchema = &api.Schema{
	Name:        "course_info",
	Description: "Course title, description and cover image query",
	Definition: map[string]any{
		"type":     "object",
		"required": []string{"title", "description", "imageQuery"},
		"properties": map[string]any{
			"title":       stringProp("Course title"),
			"description": stringProp("Two or three sentence course description"),
			"imageQuery":  stringProp("Short English image search query for the cover"),
		},
	},
}
