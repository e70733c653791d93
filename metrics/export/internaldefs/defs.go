package internaldefs

import (
	"github.com/MrEthical07/credkit"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   credkit.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   credkit.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events lost to dispatcher backpressure.
const (
	AuditDroppedName = "credkit_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: credkit.MetricRegisterSuccess, Name: "credkit_register_success_total", Help: "Successful registrations."},
	{ID: credkit.MetricRegisterDuplicate, Name: "credkit_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: credkit.MetricLoginSuccess, Name: "credkit_login_success_total", Help: "Successful logins."},
	{ID: credkit.MetricLoginFailure, Name: "credkit_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: credkit.MetricResolveFailure, Name: "credkit_resolve_failure_total", Help: "Bearer tokens that did not resolve to a subject."},
	{ID: credkit.MetricPasswordChangeSuccess, Name: "credkit_password_change_success_total", Help: "Successful password changes."},
	{ID: credkit.MetricPasswordChangeInvalidOld, Name: "credkit_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: credkit.MetricPasswordResetRequest, Name: "credkit_password_reset_request_total", Help: "Forgot-password requests."},
	{ID: credkit.MetricPasswordResetDelivered, Name: "credkit_password_reset_delivered_total", Help: "Reset codes handed to the sender."},
	{ID: credkit.MetricPasswordResetDeliveryFailure, Name: "credkit_password_reset_delivery_failure_total", Help: "Reset codes that could not be stored or sent."},
	{ID: credkit.MetricPasswordResetConfirmSuccess, Name: "credkit_password_reset_confirm_success_total", Help: "Successful password resets."},
	{ID: credkit.MetricPasswordResetConfirmFailure, Name: "credkit_password_reset_confirm_failure_total", Help: "Password resets with an invalid or expired code."},
	{ID: credkit.MetricOAuthStateIssued, Name: "credkit_oauth_state_issued_total", Help: "OAuth states issued."},
	{ID: credkit.MetricOAuthStateRejected, Name: "credkit_oauth_state_rejected_total", Help: "OAuth callbacks with an invalid, reused or expired state."},
	{ID: credkit.MetricRateLimitHit, Name: "credkit_rate_limit_hit_total", Help: "Requests denied by the rate limiter."},
	{ID: credkit.MetricTokenRevoked, Name: "credkit_token_revoked_total", Help: "Revoked bearer tokens."},
	{ID: credkit.MetricHashUpgraded, Name: "credkit_password_hash_upgraded_total", Help: "Stored password hashes upgraded on login."},
}

var HistogramDefs = []HistogramDef{
	{ID: credkit.MetricResolveLatency, Name: "credkit_resolve_latency_seconds", Help: "ResolveCurrentSubject latency histogram."},
}

// HistogramBoundSuffix names each bucket for exporters that cannot label
// buckets, in bucket order.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// HistogramUpperBounds returns the finite bucket bounds in seconds.
func HistogramUpperBounds() []float64 {
	bounds := credkit.HistogramBucketBounds()
	out := make([]float64, len(bounds))
	for i, b := range bounds {
		out[i] = b.Seconds()
	}
	return out
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
