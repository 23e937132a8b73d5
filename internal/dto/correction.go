package dto

type CorrectionRequest struct {
	Question  string  `json:"question" validate:"required"`
	Answer    string  `json:"answer" validate:"required"`
	Language  string  `json:"language" validate:"required,oneof=uz ru en"`
	MatchRule string  `json:"match_rule" validate:"omitempty,oneof=exact semantic"`
	Threshold float64 `json:"threshold"`
	IsActive  *bool   `json:"is_active"`
}

type CorrectionResponse struct {
	ID        string  `json:"id"`
	Question  string  `json:"question"`
	Answer    string  `json:"answer"`
	Language  string  `json:"language"`
	MatchRule string  `json:"match_rule"`
	Threshold float64 `json:"threshold"`
	IsActive  bool    `json:"is_active"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}
