// Package leads detects buying-intent signals in inbound messages and escalates hot leads.
package leads

import (
	"regexp"
	"time"
)

// Kind names a buying-intent signal.
type Kind string

const (
	PricingQuestion   Kind = "pricing_question"
	Urgency           Kind = "urgency"
	DemoRequest       Kind = "demo_request"
	CompetitorMention Kind = "competitor_mention"
	PaymentQuestion   Kind = "payment_question"
	BuyingIntent      Kind = "buying_intent"
	NegativeIntent    Kind = "negative_intent"
)

// Signal is one detected cue. It is never mutated after detection.
type Signal struct {
	Type          Kind      `json:"type"`
	Weight        int       `json:"weight"`
	MatchedPhrase string    `json:"matchedPhrase"`
	DetectedAt    time.Time `json:"detectedAt"`
}

type rule struct {
	kind     Kind
	weight   int
	patterns []*regexp.Regexp
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile("(?i)" + e)
	}
	return out
}

// taxonomy is evaluated in order; the first matching pattern of a kind wins.
var taxonomy = []rule{
	{PricingQuestion, 25, patterns(
		`prix|tarif|co[uû]t|combien|budget|devis`,
		`c'est quoi (le |les )?prix`,
		`vous faites (à |des )?combien`,
	)},
	{Urgency, 30, patterns(
		`urgent|rapidement|vite|asap|aujourd'hui|cette semaine|demain`,
		`on doit (d[ée]cider|se lancer|commencer)`,
		`besoin (rapide|urgent|vite)`,
	)},
	{DemoRequest, 30, patterns(
		`d[ée]mo|essai|test|voir|montrer|pr[ée]sentation`,
		`je (veux|voudrais|peux|pourrais) (voir|tester|essayer)`,
		`comment [çc]a (marche|fonctionne)`,
	)},
	{CompetitorMention, 15, patterns(
		`actuellement|d[ée]j[àa]|en ce moment|on utilise`,
		`salesforce|hubspot|pipedrive|zoho|monday`,
		`autre (solution|outil|logiciel)`,
	)},
	{PaymentQuestion, 20, patterns(
		`paiement|payer|r[èe]glement|facture|abonnement`,
		`carte|virement|pr[ée]l[èe]vement`,
		`mensuel|annuel|engagement`,
	)},
	{BuyingIntent, 25, patterns(
		`int[ée]ress[ée]|je prends|on signe|ok pour|deal|march[ée] conclu`,
		`quand (peut-on|on peut) commencer`,
		`c'est bon|parfait|vendu`,
	)},
	{NegativeIntent, -50, patterns(
		`pas int[ée]ress[ée]|non merci|stop|arr[êe]te`,
		`plus tard|pas maintenant|pas le moment`,
		`d[ée]sinscri|spam|signaler`,
	)},
}

// Detector matches messages against the signal taxonomy.
type Detector struct {
	now func() time.Time
}

func NewDetector() *Detector {
	return &Detector{now: time.Now}
}

// Detect returns at most one signal per kind, in taxonomy order. It has no side effects.
func (d *Detector) Detect(message string) []Signal {
	var out []Signal
	if message == "" {
		return out
	}
	at := d.now().UTC()
	for _, r := range taxonomy {
		for _, p := range r.patterns {
			if m := p.FindString(message); m != "" {
				out = append(out, Signal{Type: r.kind, Weight: r.weight, MatchedPhrase: m, DetectedAt: at})
				break
			}
		}
	}
	return out
}

// Weight returns the configured weight for kind, 0 for unknown kinds.
func Weight(kind Kind) int {
	for _, r := range taxonomy {
		if r.kind == kind {
			return r.weight
		}
	}
	return 0
}

func Sum(signals []Signal) int {
	total := 0
	for _, s := range signals {
		total += s.Weight
	}
	return total
}

func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ScoreOf is the clamped weight sum of signals.
func ScoreOf(signals []Signal) int {
	return Clamp(Sum(signals))
}

// Recommendation maps a score to the follow-up shown to the sales team.
func Recommendation(score int) string {
	switch {
	case score >= 85:
		return "APPELER MAINTENANT - Intention d'achat très élevée"
	case score >= 70:
		return "Répondre rapidement - Prospect chaud"
	case score >= 50:
		return "Prospect intéressé - Continuer la conversation"
	default:
		return "Prospect à qualifier"
	}
}
