package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for sign attempts.
const (
	OutcomeSigned        = "signed"
	OutcomeInvalidToken  = "invalid_token"
	OutcomeExpired       = "expired"
	OutcomeAlreadySigned = "already_signed"
	OutcomeOutOfOrder    = "out_of_order"
	OutcomeRejected      = "rejected"
	OutcomeError         = "error"
)

// SigningMetrics tracks the signing workflow and certificate checks.
type SigningMetrics struct {
	signAttempts       *prometheus.CounterVec
	documentsCompleted prometheus.Counter
	certificates       *prometheus.CounterVec
	verifications      *prometheus.CounterVec
}

// NewSigningMetrics registers the workflow metrics. A nil registerer yields a
// no-op recorder.
func NewSigningMetrics(reg prometheus.Registerer) *SigningMetrics {
	if reg == nil {
		return &SigningMetrics{}
	}
	signAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sign_attempts_total",
		Help: "Signature submissions by outcome.",
	}, []string{"outcome"})
	documentsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "documents_fully_signed_total",
		Help: "Documents that collected every required signature.",
	})
	certificates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificates_total",
		Help: "Certificate lifecycle actions.",
	}, []string{"action"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "certificate_verifications_total",
		Help: "Certificate verifications by result.",
	}, []string{"result"})
	reg.MustRegister(signAttempts, documentsCompleted, certificates, verifications)
	return &SigningMetrics{
		signAttempts:       signAttempts,
		documentsCompleted: documentsCompleted,
		certificates:       certificates,
		verifications:      verifications,
	}
}

// IncSignAttempt counts one SignDocument call.
func (m *SigningMetrics) IncSignAttempt(outcome string) {
	if m == nil || m.signAttempts == nil {
		return
	}
	m.signAttempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDocumentCompleted counts a document reaching the fully signed state.
func (m *SigningMetrics) IncDocumentCompleted() {
	if m == nil || m.documentsCompleted == nil {
		return
	}
	m.documentsCompleted.Inc()
}

// IncCertificate counts a generate or revoke action.
func (m *SigningMetrics) IncCertificate(action string) {
	if m == nil || m.certificates == nil {
		return
	}
	m.certificates.WithLabelValues(normalizeLabel(action)).Inc()
}

// IncVerification counts a VerifyCertificate result ("valid", "hash_mismatch", ...).
func (m *SigningMetrics) IncVerification(result string) {
	if m == nil || m.verifications == nil {
		return
	}
	m.verifications.WithLabelValues(normalizeLabel(result)).Inc()
}
