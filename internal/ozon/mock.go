package ozon

import (
	"context"
	"encoding/json"
	"sync"
)

// mockTransport serves canned payloads for every operation so the whole
// pipeline can run without marketplace credentials. Selected via
// ClientConfig.MockMode; the client's rate limiting, classification and
// result contracts are untouched. State is mutated by the mutating
// endpoints so a worker run against the mock reaches its normal terminal
// conditions instead of re-listing the same products forever.
type mockTransport struct {
	mu       sync.Mutex
	actions  []Action
	products []ProductItem
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		actions: []Action{
			{ID: 1001, Title: "Скидки за счёт продавца", Description: "Вы платите за скидку"},
			{ID: 1002, Title: "Маркетплейс промо", Description: "Скидка за счёт площадки"},
		},
		products: []ProductItem{
			{ProductIDField: "12345"},
			{ProductIDField: "12346"},
		},
	}
}

func (m *mockTransport) roundTrip(_ context.Context, _, endpoint string, body any) *CallResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch endpoint {
	case endpointActions:
		return canned(actionsEnvelope{Result: m.actions})
	case endpointActionProducts:
		var env listEnvelope
		env.Result.Products = m.products
		return canned(env)
	case endpointProductList:
		var env listEnvelope
		env.Result.Items = m.products
		return canned(env)
	case endpointProductUnarchive:
		m.removeProducts(body)
		return canned(map[string]any{"result": true})
	default:
		// Other mutating endpoints acknowledge without payload.
		return canned(map[string]any{"result": true})
	}
}

// removeProducts drops the products named in an unarchive request body, so
// the next listing no longer returns them.
func (m *mockTransport) removeProducts(body any) {
	req, ok := body.(map[string]any)
	if !ok {
		return
	}
	ids, ok := req["product_id"].([]string)
	if !ok {
		return
	}
	requested := make(map[string]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}
	kept := m.products[:0]
	for _, p := range m.products {
		if !requested[string(p.ProductIDField)] {
			kept = append(kept, p)
		}
	}
	m.products = kept
}

func canned(payload any) *CallResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return &CallResult{ErrorText: err.Error()}
	}
	return &CallResult{Success: true, StatusCode: 200, Data: data}
}
