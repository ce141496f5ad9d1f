package domain

import (
	"encoding/json"
	"fmt"
)

// QuestionType is the tag that selects a question payload variant.
type QuestionType string

const (
	QuestionTextInput      QuestionType = "text_input"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionSlider         QuestionType = "slider"
)

// QuestionPayload is implemented by TextInput, MultipleChoice and Slider.
type QuestionPayload interface {
	Type() QuestionType
}

// TextInput is a free-text question.
type TextInput struct {
	MaxLength     int    `json:"max_length"`
	CorrectAnswer string `json:"correct_answer"`
}

func (TextInput) Type() QuestionType { return QuestionTextInput }

// Option is one choice of a multiple-choice question.
type Option struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// MultipleChoice is a question with a fixed set of options.
type MultipleChoice struct {
	Options []Option `json:"options"`
}

func (MultipleChoice) Type() QuestionType { return QuestionMultipleChoice }

// Slider is a numeric question answered on a range.
type Slider struct {
	Min          int `json:"min_value"`
	Max          int `json:"max_value"`
	Step         int `json:"step"`
	CorrectValue int `json:"correct_value"`
}

func (Slider) Type() QuestionType { return QuestionSlider }

// Question is a quiz question. Payload holds the type-specific part.
type Question struct {
	ID      int64
	Text    string
	Payload QuestionPayload
}

type questionJSON struct {
	ID      int64           `json:"id"`
	Text    string          `json:"question_text"`
	Type    QuestionType    `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (q Question) MarshalJSON() ([]byte, error) {
	if q.Payload == nil {
		return nil, fmt.Errorf("question %d has no payload", q.ID)
	}
	payload, err := json.Marshal(q.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(questionJSON{ID: q.ID, Text: q.Text, Type: q.Payload.Type(), Payload: payload})
}

func (q *Question) UnmarshalJSON(data []byte) error {
	var raw questionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var payload QuestionPayload
	switch raw.Type {
	case QuestionTextInput:
		var p TextInput
		if err := unmarshalPayload(raw.Payload, &p); err != nil {
			return err
		}
		payload = p
	case QuestionMultipleChoice:
		var p MultipleChoice
		if err := unmarshalPayload(raw.Payload, &p); err != nil {
			return err
		}
		payload = p
	case QuestionSlider:
		var p Slider
		if err := unmarshalPayload(raw.Payload, &p); err != nil {
			return err
		}
		payload = p
	default:
		return fmt.Errorf("unknown question type %q", raw.Type)
	}
	*q = Question{ID: raw.ID, Text: raw.Text, Payload: payload}
	return nil
}

func unmarshalPayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Quiz is a collection of questions owned by a user.
type Quiz struct {
	ID        int64      `json:"id"`
	OwnerID   int64      `json:"owner_id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}
