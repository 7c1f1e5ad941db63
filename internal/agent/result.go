package agent

import "encoding/json"

// Sentinel error values carried on step results. Consumers switch on
// these to tell a human-blocked task from an ordinary failure.
const (
	ErrCaptchaDetected     = "CAPTCHA_DETECTED"
	ErrAllFallbacksBlocked = "ALL_FALLBACKS_BLOCKED"
)

// Data is the payload of a step result. Title and URL are always
// serialised, even when empty, so consumers never branch on key
// presence; extras ride alongside them.
type Data struct {
	Title  string
	URL    string
	Extras map[string]any
}

func (d Data) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Extras)+2)
	for k, v := range d.Extras {
		m[k] = v
	}
	m["title"] = d.Title
	m["url"] = d.URL
	return json.Marshal(m)
}

func (d *Data) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if t, ok := m["title"].(string); ok {
		d.Title = t
	}
	if u, ok := m["url"].(string); ok {
		d.URL = u
	}
	delete(m, "title")
	delete(m, "url")
	if len(m) > 0 {
		d.Extras = m
	}
	return nil
}

// TaskResult is the outcome of one step. Error serialises as null when
// absent, never as a missing key.
type TaskResult struct {
	Success bool
	Message string
	Data    Data
	Error   string
}

func (r TaskResult) MarshalJSON() ([]byte, error) {
	var errField *string
	if r.Error != "" {
		errField = &r.Error
	}
	return json.Marshal(struct {
		Success bool    `json:"success"`
		Message string  `json:"message"`
		Data    Data    `json:"data"`
		Error   *string `json:"error"`
	}{r.Success, r.Message, r.Data, errField})
}

func (r *TaskResult) UnmarshalJSON(b []byte) error {
	var raw struct {
		Success bool    `json:"success"`
		Message string  `json:"message"`
		Data    Data    `json:"data"`
		Error   *string `json:"error"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Success = raw.Success
	r.Message = raw.Message
	r.Data = raw.Data
	if raw.Error != nil {
		r.Error = *raw.Error
	}
	return nil
}

func ok(message string, data Data) TaskResult {
	return TaskResult{Success: true, Message: message, Data: data}
}

func fail(message, errValue string, data Data) TaskResult {
	return TaskResult{Success: false, Message: message, Data: data, Error: errValue}
}

// Step is one recorded move of the task loop
type Step struct {
	Step    string     `json:"step"`
	Success bool       `json:"success"`
	Result  TaskResult `json:"result"`
}

// Trace is the ordered record of everything a task did
type Trace struct {
	Query            string   `json:"query"`
	Steps            []Step   `json:"steps"`
	CaptchaURLs      []string `json:"captcha_urls,omitempty"`
	ChallengePending bool     `json:"challenge_pending,omitempty"`
}

// Final returns the last recorded step result; a trace with no steps
// reads as a failure.
func (t *Trace) Final() TaskResult {
	if len(t.Steps) == 0 {
		return fail("no steps executed", "", Data{})
	}
	return t.Steps[len(t.Steps)-1].Result
}

func (t *Trace) record(name string, result TaskResult) {
	t.Steps = append(t.Steps, Step{Step: name, Success: result.Success, Result: result})
}

// addCaptchaURL accumulates blocked URLs, deduped, order preserved
func (t *Trace) addCaptchaURL(url string) {
	if url == "" {
		return
	}
	for _, u := range t.CaptchaURLs {
		if u == url {
			return
		}
	}
	t.CaptchaURLs = append(t.CaptchaURLs, url)
}
