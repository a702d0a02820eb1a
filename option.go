package smartcoex

// CoexOption is implemented by anything that can be configured with an Option.
type CoexOption interface {
	SetLogger(Logger) error
	SetVendorOCF(uint16) error
}

// An Option is a configuration function, which configures the coex pipeline.
type Option func(CoexOption) error

// OptLogger overrides the package logger for one Coex.
func OptLogger(l Logger) Option {
	return func(opt CoexOption) error {
		return opt.SetLogger(l)
	}
}

// OptVendorOCF overrides the OCF of the LE scan coex vendor command.
func OptVendorOCF(ocf uint16) Option {
	return func(opt CoexOption) error {
		return opt.SetVendorOCF(ocf)
	}
}
