package e2eechat

import "github.com/prometheus/client_golang/prometheus"

// Label values of the opened and backup counters.
const (
	resultOK       = "ok"
	resultAuthFail = "auth_failed"
	resultFormat   = "format_error"
	resultNoKey    = "no_key"
	resultError    = "error"

	opBackup  = "backup"
	opRestore = "restore"
)

type metrics struct {
	sealed  prometheus.Counter
	opened  *prometheus.CounterVec
	backups *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		sealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "e2eechat",
			Name:      "messages_sealed_total",
			Help:      "Messages encrypted for a recipient.",
		}),
		opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "e2eechat",
			Name:      "messages_opened_total",
			Help:      "Messages the client attempted to decrypt, by result.",
		}, []string{"result"}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "e2eechat",
			Name:      "key_backups_total",
			Help:      "Private key backup and restore attempts, by operation and result.",
		}, []string{"op", "result"}),
	}
	for _, c := range []prometheus.Collector{m.sealed, m.opened, m.backups} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// resultLabel classifies a public error for the result label.
func resultLabel(err error) string {
	switch err.(type) {
	case nil:
		return resultOK
	case *AuthenticationError:
		return resultAuthFail
	case *FormatError:
		return resultFormat
	case *NoKeyError:
		return resultNoKey
	default:
		return resultError
	}
}
