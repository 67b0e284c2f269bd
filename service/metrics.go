package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var challengesIssued = promauto.NewCounter(prometheus.CounterOpts{
	Name: "walletgate_challenges_issued_total",
	Help: "The number of sign-in nonces issued",
})

var challengeVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "walletgate_challenge_verifications_total",
	Help: "Signed message verifications by outcome",
}, []string{"result"})

var sessionsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "walletgate_sessions_issued_total",
	Help: "Session tokens issued by flow",
}, []string{"flow"})

var sessionsRevoked = promauto.NewCounter(prometheus.CounterOpts{
	Name: "walletgate_sessions_revoked_total",
	Help: "Session tokens revoked through logout",
})
