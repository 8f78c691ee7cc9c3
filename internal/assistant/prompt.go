// internal/assistant/prompt.go
package assistant

import (
	"fmt"
	"strconv"
	"strings"

	"whatsapp-sales-workers/internal/models"
)

const maxDocumentChars = 5000

const salesAgentRules = `Tu es un agent commercial intelligent et naturel pour l'entreprise. Tu aides à gérer les conversations WhatsApp de manière professionnelle mais chaleureuse.

RÈGLES IMPORTANTES:
- NE JAMAIS dire que tu es un assistant automatique ou une IA
- Utiliser un ton naturel et humain (expressions comme "Ah super !", "Top !", emojis modérés)
- Rebondir sur les réponses du prospect
- Admettre quand tu ne sais pas ("Bonne question, laissez-moi vérifier...")
- Utiliser le storytelling et des exemples concrets
- Être concis (3-4 phrases max par message)
- Guider subtilement vers les objectifs commerciaux définis
`

const copywriterRules = `Tu es un expert en rédaction commerciale. Tu génères des messages WhatsApp personnalisés et uniques pour chaque contact.

RÈGLES:
- Chaque message doit être UNIQUE et personnalisé
- Ton naturel et professionnel mais chaleureux
- Maximum 3-4 phrases
- Utiliser les données du contact pour personnaliser
- Ne pas être générique ou robotique
`

// Knowledge is the material folded into the system prompt.
type Knowledge struct {
	Products  []models.Product
	Goals     []models.Goal
	Documents []models.BrainDocument
}

func price(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// CatalogContext describes active products, empty when there are none.
func CatalogContext(products []models.Product) string {
	if len(products) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n📦 CATALOGUE PRODUITS:\n")
	for _, p := range products {
		currency := p.CurrencyOrDefault()
		b.WriteString("\n---\n")
		fmt.Fprintf(&b, "Produit: %s\n", p.Name)
		fmt.Fprintf(&b, "Catégorie: %s\n", orDefault(p.Category, "Non définie"))
		fmt.Fprintf(&b, "Description: %s\n", orDefault(p.Description, "Aucune description"))
		fmt.Fprintf(&b, "Prix: %s%s/%s\n", price(p.BasePrice), currency, p.PriceUnit)

		if p.MinNegotiable != nil && *p.MinNegotiable > 0 {
			fmt.Fprintf(&b, "Prix négociable minimum: %s%s\n", price(*p.MinNegotiable), currency)
			fmt.Fprintf(&b, "Remise max: %s%%\n", price(p.MaxDiscountPercent))
			if p.NegotiationConditions != "" {
				fmt.Fprintf(&b, "Conditions de négociation: %s\n", p.NegotiationConditions)
			}
		}
		if len(p.Features) > 0 {
			fmt.Fprintf(&b, "Fonctionnalités: %s\n", strings.Join(p.Features, ", "))
		}
		if len(p.SalesArguments) > 0 {
			fmt.Fprintf(&b, "Arguments de vente: %s\n", strings.Join(p.SalesArguments, "; "))
		}
		if len(p.ObjectionsResponses) > 0 {
			b.WriteString("Réponses aux objections:\n")
			for _, objection := range sortedKeys(p.ObjectionsResponses) {
				fmt.Fprintf(&b, "  - %q: %s\n", objection, p.ObjectionsResponses[objection])
			}
		}
		if p.CTAPrimary != "" {
			fmt.Fprintf(&b, "Call-to-action principal: %s\n", p.CTAPrimary)
		}
	}
	return b.String()
}

// GoalsContext lists conversation goals in the order given.
func GoalsContext(goals []models.Goal) string {
	if len(goals) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n🎯 OBJECTIFS CONVERSATIONNELS:\n")
	for _, g := range goals {
		b.WriteString("\n---\n")
		fmt.Fprintf(&b, "Objectif: %s (Priorité: %s)\n", g.Name, g.Priority)
		fmt.Fprintf(&b, "Description: %s\n", orDefault(g.Description, "Non définie"))
		if len(g.Tactics) > 0 {
			b.WriteString("Tactiques:\n")
			for i, t := range g.Tactics {
				fmt.Fprintf(&b, "  %d. %s\n", i+1, t)
			}
		}
		if len(g.SuccessIndicators) > 0 {
			fmt.Fprintf(&b, "Indicateurs de succès: %s\n", strings.Join(g.SuccessIndicators, "; "))
		}
		if len(g.AbortConditions) > 0 {
			fmt.Fprintf(&b, "Conditions d'abandon: %s\n", strings.Join(g.AbortConditions, "; "))
		}
	}
	return b.String()
}

// BrainContext appends each document cut to maxDocumentChars runes.
func BrainContext(docs []models.BrainDocument) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n📚 DOCUMENTS DE RÉFÉRENCE:\n")
	for _, d := range docs {
		content := []rune(d.Content)
		if len(content) > maxDocumentChars {
			content = content[:maxDocumentChars]
		}
		fmt.Fprintf(&b, "\n%s\n---\n", string(content))
	}
	return b.String()
}

func SystemPrompt(k Knowledge) string {
	return salesAgentRules + "\n" + CatalogContext(k.Products) + "\n" + GoalsContext(k.Goals) + "\n" + BrainContext(k.Documents) + "\n"
}

func campaignSystemPrompt(template string, products []models.Product) string {
	return copywriterRules + "\nTEMPLATE DE L'UTILISATEUR:\n" + template + "\n\nCATALOGUE:\n" + CatalogContext(products) + "\n"
}

func campaignPrompt(r models.Recipient) string {
	data := "{}"
	if len(r.CustomData) > 0 {
		data = compactJSON(r.CustomData)
	}
	return fmt.Sprintf("Génère un message unique pour ce contact:\nNom: %s\nEntreprise: %s\nTéléphone: %s\nDonnées additionnelles: %s\n\nMessage:",
		orDefault(r.Name, "Client"), orDefault(r.Company, "Non spécifiée"), r.Phone, data)
}

func suggestionsSystemPrompt(k Knowledge, contactName string) string {
	return "Tu es un assistant commercial qui suggère des réponses.\n" +
		"Génère exactement 3 suggestions de réponse différentes.\n" +
		"Format de sortie: JSON array avec 3 objets {id: number, text: string}\n\n" +
		"CONTEXTE:\n" + CatalogContext(k.Products) + "\n" + GoalsContext(k.Goals) + "\n\n" +
		"Contact: " + orDefault(contactName, "Client")
}

// historyTranscript renders the conversation as "Moi:" / "Client:" lines.
func historyTranscript(history []models.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		who := "Client"
		if m.FromMe {
			who = "Moi"
		}
		lines = append(lines, who+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
