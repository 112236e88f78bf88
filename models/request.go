package models

// SearchRequest is the payload for POST /api/v1/search.
type SearchRequest struct {
	// Keyword is the job search query. Required.
	Keyword string `json:"keyword" binding:"required"`

	// Location is the target city, e.g. "shanghai" or "上海".
	// Default: "shanghai".
	Location string `json:"location,omitempty"`

	// Limit is the maximum number of records to return.
	// Default: 20. Max: 200.
	Limit int `json:"limit,omitempty" binding:"omitempty,min=1,max=200"`

	// Priority orders tasks within the queue. Higher runs earlier
	// when workers are saturated. Default: 0.
	Priority int `json:"priority,omitempty" binding:"omitempty,min=0,max=9"`

	// UseCache controls whether the result cache may answer this
	// request and whether its result is written back. Default: true.
	UseCache *bool `json:"use_cache,omitempty"`

	// Wait blocks the request until the task finishes (bounded by
	// WaitSeconds) instead of returning a task ID immediately.
	Wait bool `json:"wait,omitempty"`

	// WaitSeconds caps the synchronous wait. Default: 120. Max: 600.
	WaitSeconds int `json:"wait_seconds,omitempty" binding:"omitempty,min=1,max=600"`

	// CallbackURL, when set, receives a webhook event once the task
	// completes or fails. Must be an http(s) URL.
	CallbackURL string `json:"callback_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *SearchRequest) Defaults() {
	if r.Location == "" {
		r.Location = "shanghai"
	}
	if r.Limit == 0 {
		r.Limit = 20
	}
	if r.UseCache == nil {
		t := true
		r.UseCache = &t
	}
	if r.WaitSeconds == 0 {
		r.WaitSeconds = 120
	}
}
