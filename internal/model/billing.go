package model

// CreateCheckoutSessionRequest starts a subscription purchase. The price
// ID must be one of the operator-configured plan prices.
type CreateCheckoutSessionRequest struct {
	PriceID    string `json:"price_id" binding:"required"`
	SuccessURL string `json:"success_url" binding:"required,url"`
	CancelURL  string `json:"cancel_url" binding:"required,url"`
}

type CreatePortalSessionRequest struct {
	ReturnURL string `json:"return_url" binding:"required,url"`
}

// CheckoutSessionResponse carries the hosted page URL the client
// redirects to.
type CheckoutSessionResponse struct {
	URL string `json:"url"`
}
