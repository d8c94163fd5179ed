package event

const ResetProvisioningDestination string = "reset_provisioning"
const ResetProvisioningConsumerNotification string = "reset_provisioning_notification"

// ResetProvisioningMessage asks the notification module to mail a
// provisioning payload. The QR code is rendered by the consumer from URI.
type ResetProvisioningMessage struct {
	EventID   string `json:"event_id"`
	Account   string `json:"account"`
	Contact   string `json:"contact"`
	Issuer    string `json:"issuer"`
	Secret    string `json:"secret"`
	URI       string `json:"uri"`
	Digits    int    `json:"digits"`
	Period    int    `json:"period"`
	Algorithm string `json:"algorithm"`
}
