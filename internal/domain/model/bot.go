package model

// Bot is one keeper identity: a chain endpoint, a signing key and the
// restaking tokens it services.
type Bot struct {
	Name       string
	ChainID    ChainID
	RPCURL     string
	SigningKey string
	Enabled    bool
	Tokens     []RestakingToken

	// ConfigErr is set when the bot entry itself is unusable. None of its
	// tokens are scheduled.
	ConfigErr error
}
