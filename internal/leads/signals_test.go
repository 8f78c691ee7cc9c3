// internal/leads/signals_test.go
package leads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedDetector() *Detector {
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &Detector{now: func() time.Time { return at }}
}

func kinds(signals []Signal) []Kind {
	out := make([]Kind, len(signals))
	for i, s := range signals {
		out[i] = s.Type
	}
	return out
}

func TestDetect_PricingQuestion(t *testing.T) {
	signals := fixedDetector().Detect("Quel est le prix?")

	require.Len(t, signals, 1)
	assert.Equal(t, PricingQuestion, signals[0].Type)
	assert.Equal(t, 25, signals[0].Weight)
	assert.Equal(t, "prix", signals[0].MatchedPhrase)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), signals[0].DetectedAt)
}

func TestDetect_OneSignalPerKind(t *testing.T) {
	signals := fixedDetector().Detect("C'est urgent, je veux un devis aujourd'hui")

	assert.Equal(t, []Kind{PricingQuestion, Urgency}, kinds(signals))
	assert.Equal(t, 55, Sum(signals))
	assert.Equal(t, "devis", signals[0].MatchedPhrase)
	assert.Equal(t, "urgent", signals[1].MatchedPhrase)
}

func TestDetect_Table(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []Kind
	}{
		{"empty", "", nil},
		{"no pattern", "Bonjour, merci pour votre message", nil},
		{"case insensitive", "COMBIEN ça coûte ?", []Kind{PricingQuestion}},
		{"demo", "Comment ça marche exactement ?", []Kind{DemoRequest}},
		{"competitor", "On utilise HubSpot en ce moment", []Kind{CompetitorMention}},
		{"payment", "Je peux payer par virement ?", []Kind{PaymentQuestion}},
		{"buying intent", "Parfait, on signe", []Kind{BuyingIntent}},
		{"negative", "Non merci", []Kind{NegativeIntent}},
		{"accented payment", "Un prélèvement mensuel", []Kind{PaymentQuestion}},
		{"multiple kinds in order", "Je suis intéressé, une démo demain ?", []Kind{Urgency, DemoRequest, BuyingIntent}},
	}

	d := fixedDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.message)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, kinds(got))
		})
	}
}

func TestDetect_NeverRepeatsAKind(t *testing.T) {
	messages := []string{
		"prix tarif coût combien budget devis, c'est quoi les prix, vous faites combien",
		"urgent rapidement vite asap demain, on doit décider, besoin urgent",
		"paiement carte mensuel facture virement annuel",
	}
	d := fixedDetector()
	for _, m := range messages {
		seen := map[Kind]bool{}
		for _, s := range d.Detect(m) {
			assert.False(t, seen[s.Type], "kind %s repeated for %q", s.Type, m)
			seen[s.Type] = true
		}
	}
}

func TestScoreOf_ClampsToRange(t *testing.T) {
	neg := fixedDetector().Detect("stop")
	assert.Equal(t, -50, Sum(neg))
	assert.Equal(t, 0, ScoreOf(neg))

	many := make([]Signal, 6)
	for i := range many {
		many[i] = Signal{Type: Urgency, Weight: 30}
	}
	assert.Equal(t, 100, ScoreOf(many))
}

func TestRecommendation_Brackets(t *testing.T) {
	assert.Equal(t, "APPELER MAINTENANT - Intention d'achat très élevée", Recommendation(85))
	assert.Equal(t, "APPELER MAINTENANT - Intention d'achat très élevée", Recommendation(100))
	assert.Equal(t, "Répondre rapidement - Prospect chaud", Recommendation(84))
	assert.Equal(t, "Répondre rapidement - Prospect chaud", Recommendation(70))
	assert.Equal(t, "Prospect intéressé - Continuer la conversation", Recommendation(50))
	assert.Equal(t, "Prospect à qualifier", Recommendation(49))
}

func TestWeight(t *testing.T) {
	assert.Equal(t, 30, Weight(DemoRequest))
	assert.Equal(t, -50, Weight(NegativeIntent))
	assert.Equal(t, 0, Weight(Kind("unknown")))
}
