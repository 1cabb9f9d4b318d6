package notify

import (
	"encoding/json"
	"time"

	"referral-earnings-go/internal/models"
)

// EventName is the channel/event name realtime clients listen on.
const EventName = "earningsUpdate"

// wireEvent is the JSON payload shared by every transport.
type wireEvent struct {
	Event        string    `json:"event"`
	UserId       string    `json:"userId"`
	Earnings     string    `json:"earnings"`
	Level        int       `json:"level"`
	ReferralType string    `json:"referralType"`
	PurchaseId   string    `json:"purchaseId"`
	PurchaserId  string    `json:"purchaserId"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// EncodeEvent renders an event in the wire format.
func EncodeEvent(event models.EarningsEvent) ([]byte, error) {
	return json.Marshal(wireEvent{
		Event:        EventName,
		UserId:       event.BeneficiaryId,
		Earnings:     event.Amount.String(),
		Level:        event.Level,
		ReferralType: event.ReferralType(),
		PurchaseId:   event.PurchaseId,
		PurchaserId:  event.PurchaserId,
		OccurredAt:   event.OccurredAt.UTC(),
	})
}
