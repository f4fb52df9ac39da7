package prompt

// Persona 描述"与名人对话"功能中可选的角色。
type Persona struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Title  string `json:"title" yaml:"title"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// CallbackData returns the button payload that selects this persona.
func (p Persona) CallbackData() string {
	return "talk_" + p.ID
}

// Topic is a selectable sub-theme of a feature (GPT topic, quiz topic, business category).
type Topic struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Catalogue is the parsed manifest.
type Catalogue struct {
	Personas           []Persona `json:"personas" yaml:"personas"`
	GPTTopics          []Topic   `json:"gptTopics" yaml:"gpt_topics"`
	QuizTopics         []Topic   `json:"quizTopics" yaml:"quiz_topics"`
	BusinessCategories []Topic   `json:"businessCategories" yaml:"business_categories"`
}
