package models

// PatchOp is a single structural mutation. The only supported op is "set".
type PatchOp struct {
	Op    string      `json:"op" validate:"required,oneof=set"`
	Path  string      `json:"path" validate:"required"`
	Value interface{} `json:"value"`
}

// PatchRequest is the body of a patch_apply command.
// Actor and IdempotencyKey are mandatory; requests without them are rejected
// before any state is touched.
type PatchRequest struct {
	Actor          string    `json:"actor" validate:"required"`
	IdempotencyKey string    `json:"idempotencyKey" validate:"required"`
	Route          string    `json:"route"`
	Ops            []PatchOp `json:"ops" validate:"dive"`
}

// PatchResult is the cached, replayable outcome of a patch_apply.
type PatchResult struct {
	Success   bool                   `json:"success"`
	Overrides map[string]interface{} `json:"overrides"`
}
