// File path: internal/intent/intent.go
package intent

// OperationKind enumerates the operations the extractor can recognise.
type OperationKind string

const (
	OpCheck   OperationKind = "check"
	OpCount   OperationKind = "count"
	OpSummary OperationKind = "summary"
	OpMean    OperationKind = "mean"
	OpNone    OperationKind = "none"
)

// Intent is the structured reading of one user turn. Empty Operations
// with an empty Question means extraction failed or the input was
// unclear; the caller surfaces a clarification prompt.
type Intent struct {
	Operations []OperationKind
	Question   string
	Factor     string

	// Unrecognized keeps operation tokens the model emitted that are not
	// supported, so the caller can name them in its rejection message.
	Unrecognized []string
}

// Has reports whether the intent includes the given operation.
func (i Intent) Has(op OperationKind) bool {
	for _, o := range i.Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Empty reports whether no usable operation or target was extracted.
func (i Intent) Empty() bool {
	return len(i.Operations) == 0 || i.Question == ""
}

// FactorKind tags a factor-mapping follow-up turn by the flavour of the
// mapping the user supplied.
type FactorKind string

const (
	FactorAge      FactorKind = "age"
	FactorGender   FactorKind = "gender"
	FactorCurrency FactorKind = "currency"
	FactorNumeric  FactorKind = "numeric"
)
