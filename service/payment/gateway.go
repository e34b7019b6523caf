package payment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Gateway abstracts the payment processor so the demo implementation
// can be swapped for a real integration without touching the handlers.
type Gateway interface {
	// Charge attempts to collect the amount and returns a gateway
	// reference. A nil error means the charge settled.
	Charge(method string, amount float64) (string, error)
}

// DemoGateway settles card charges immediately and simulates UPI app
// intents with a ~70% success rate, matching the demo portal flow.
type DemoGateway struct {
	rng *rand.Rand
}

func NewDemoGateway() *DemoGateway {
	return &DemoGateway{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeededGateway returns a gateway with a fixed seed, for tests.
func NewSeededGateway(seed int64) *DemoGateway {
	return &DemoGateway{rng: rand.New(rand.NewSource(seed))}
}

func (g *DemoGateway) Charge(method string, amount float64) (string, error) {
	reference := fmt.Sprintf("PAY-%s", uuid.New().String())
	if method == "upi" && g.rng.Float64() >= 0.7 {
		return reference, fmt.Errorf("UPI payment was not completed")
	}
	return reference, nil
}
