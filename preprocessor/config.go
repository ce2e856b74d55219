package preprocessor

// Config selects which stages run and with which keys. Keys are hex strings;
// an empty key disables the stage that needs it.
type Config struct {
	MACAlgorithm string `yaml:"mac_algorithm" json:"mac_algorithm" env:"MAC_ALGORITHM"`
	MACKey       string `yaml:"mac_key" json:"mac_key" env:"MAC_KEY"`
	// MACField is the field receiving the MAC. 0 selects the next multiple
	// of 64 at or above the highest populated field.
	MACField int `yaml:"mac_field" json:"mac_field" env:"MAC_FIELD"`

	PINField string `yaml:"pin_field" json:"pin_field" env:"PIN_FIELD"`
	PINKey   string `yaml:"pin_key" json:"pin_key" env:"PIN_KEY"`
	// KSNField switches PIN encryption to DUKPT with PINKey as the BDK.
	KSNField      string `yaml:"ksn_field" json:"ksn_field" env:"KSN_FIELD"`
	KSNDescriptor string `yaml:"ksn_descriptor" json:"ksn_descriptor" env:"KSN_DESCRIPTOR"`

	ICCField string `yaml:"icc_field" json:"icc_field" env:"ICC_FIELD"`
	IMKAC    string `yaml:"imk_ac" json:"imk_ac" env:"IMK_AC"`
	PAN      string `yaml:"pan" json:"pan" env:"PAN"`
	PSN      string `yaml:"psn" json:"psn" env:"PSN"`
	// TxnData replaces the cryptogram input derived from the EMV tags.
	TxnData string `yaml:"txn_data" json:"txn_data" env:"TXN_DATA"`
	Padding string `yaml:"padding" json:"padding" env:"PADDING"`
}
