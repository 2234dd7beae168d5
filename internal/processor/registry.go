package processor

// Registry holds the ordered set of processors the gateway knows about
// and selects one by declared payment type — first match wins.
type Registry struct {
	processors []PaymentProcessor
}

func NewRegistry(processors ...PaymentProcessor) *Registry {
	return &Registry{processors: processors}
}

func (r *Registry) Select(paymentType string) (PaymentProcessor, bool) {
	for _, p := range r.processors {
		if p.Supports(paymentType) {
			return p, true
		}
	}
	return nil, false
}
