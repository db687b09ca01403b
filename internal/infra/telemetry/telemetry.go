package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "recovery"

// Outcome labels shared by the recovery counters.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeUnknownUser  = "unknown_user"
	OutcomeDeliveryFail = "delivery_failed"
	OutcomeError        = "error"
)

// RecoveryMetrics counts credential and password recovery outcomes.
type RecoveryMetrics struct {
	Registrations  *prometheus.CounterVec
	Logins         *prometheus.CounterVec
	ResetRequests  *prometheus.CounterVec
	CodeChecks     *prometheus.CounterVec
	PasswordResets *prometheus.CounterVec
	CodeResends    *prometheus.CounterVec
}

// NewRecoveryMetrics registers the recovery counters with reg. A nil reg uses the default registerer.
func NewRecoveryMetrics(reg prometheus.Registerer) (*RecoveryMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &RecoveryMetrics{
		Registrations:  newOutcomeCounter("registrations_total", "Registration attempts partitioned by outcome."),
		Logins:         newOutcomeCounter("logins_total", "Login attempts partitioned by outcome."),
		ResetRequests:  newOutcomeCounter("reset_requests_total", "Password reset code requests partitioned by outcome."),
		CodeChecks:     newOutcomeCounter("reset_code_checks_total", "Reset code verifications partitioned by outcome."),
		PasswordResets: newOutcomeCounter("password_resets_total", "Password reset completions partitioned by outcome."),
		CodeResends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reset_code_resends_total",
			Help:      "Reset code resends partitioned by whether the code was reused or rotated.",
		}, []string{"mode"}),
	}

	for _, slot := range []**prometheus.CounterVec{
		&m.Registrations,
		&m.Logins,
		&m.ResetRequests,
		&m.CodeChecks,
		&m.PasswordResets,
		&m.CodeResends,
	} {
		registered, err := registerCounterVec(reg, *slot)
		if err != nil {
			return nil, err
		}
		*slot = registered
	}

	return m, nil
}

func newOutcomeCounter(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, []string{"outcome"})
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return nil, fmt.Errorf("register collector: %w", err)
	}
	return c, nil
}

// Observe increments counter for label when both are set. Safe on a nil receiver.
func (m *RecoveryMetrics) Observe(counter *prometheus.CounterVec, label string) {
	if m == nil || counter == nil {
		return
	}
	counter.WithLabelValues(label).Inc()
}

func (m *RecoveryMetrics) counter(pick func(*RecoveryMetrics) *prometheus.CounterVec) *prometheus.CounterVec {
	if m == nil {
		return nil
	}
	return pick(m)
}

// ObserveRegistration records a registration outcome.
func (m *RecoveryMetrics) ObserveRegistration(outcome string) {
	m.Observe(m.counter(func(r *RecoveryMetrics) *prometheus.CounterVec { return r.Registrations }), outcome)
}

// ObserveLogin records a login outcome.
func (m *RecoveryMetrics) ObserveLogin(outcome string) {
	m.Observe(m.counter(func(r *RecoveryMetrics) *prometheus.CounterVec { return r.Logins }), outcome)
}

// ObserveResetRequest records a reset code request outcome.
func (m *RecoveryMetrics) ObserveResetRequest(outcome string) {
	m.Observe(m.counter(func(r *RecoveryMetrics) *prometheus.CounterVec { return r.ResetRequests }), outcome)
}

// ObserveCodeCheck records a reset code verification outcome.
func (m *RecoveryMetrics) ObserveCodeCheck(outcome string) {
	m.Observe(m.counter(func(r *RecoveryMetrics) *prometheus.CounterVec { return r.CodeChecks }), outcome)
}

// ObservePasswordReset records a password reset completion outcome.
func (m *RecoveryMetrics) ObservePasswordReset(outcome string) {
	m.Observe(m.counter(func(r *RecoveryMetrics) *prometheus.CounterVec { return r.PasswordResets }), outcome)
}

// ObserveResend records whether a resend reused the active code or rotated it.
func (m *RecoveryMetrics) ObserveResend(mode string) {
	m.Observe(m.counter(func(r *RecoveryMetrics) *prometheus.CounterVec { return r.CodeResends }), mode)
}
