package errors

// Reasons narrow a Code to the lifecycle rule that rejected the call.
const (
	ReasonCropNotOwned         = "CROP_NOT_OWNED"
	ReasonPurchaseNotOwned     = "PURCHASE_NOT_OWNED"
	ReasonAlreadyConfirmed     = "ALREADY_CONFIRMED"
	ReasonInsufficientStock    = "INSUFFICIENT_STOCK"
	ReasonPaymentAlreadyExists = "PAYMENT_ALREADY_EXISTS"
	ReasonNotConfirmed         = "NOT_CONFIRMED"
	ReasonNotReviewable        = "NOT_REVIEWABLE"
	ReasonAlreadyReviewed      = "ALREADY_REVIEWED"
	ReasonGatewayUnavailable   = "GATEWAY_UNAVAILABLE"
)
