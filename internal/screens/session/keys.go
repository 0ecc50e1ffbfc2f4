package session

import "charm.land/bubbles/v2/key"

type keyMap struct {
	Answer   key.Binding
	Previous key.Binding
	Next     key.Binding
	Finish   key.Binding
	Retry    key.Binding
	Media    key.Binding
	Back     key.Binding
	Yes      key.Binding
	No       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Answer:   key.NewBinding(key.WithKeys("1", "2", "3", "4", "a", "b", "c", "d"), key.WithHelp("1-4/a-d", "answer")),
		Previous: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
		Next:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
		Finish:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "finish")),
		Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Media:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "reload media")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "leave")),
		Yes:      key.NewBinding(key.WithKeys("y", "Y", "enter"), key.WithHelp("y", "yes")),
		No:       key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "no")),
	}
}

// optionIndex maps an answer key to an option index.
func optionIndex(k string) (int, bool) {
	switch k {
	case "1", "a":
		return 0, true
	case "2", "b":
		return 1, true
	case "3", "c":
		return 2, true
	case "4", "d":
		return 3, true
	}
	return 0, false
}
