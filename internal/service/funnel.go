package service

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/imovelbot/wa-messaging-service/internal/domain"
	listingRepo "github.com/imovelbot/wa-messaging-service/internal/repository/listing"
	messageRepo "github.com/imovelbot/wa-messaging-service/internal/repository/messaging"
)

// Funnel states, advanced strictly in this order. StateDone is terminal;
// any further input restarts the collection from StatePurpose.
const (
	StatePurpose       = "purpose"
	StateLocationCity  = "location_city"
	StateLocationState = "location_state"
	StateType          = "type"
	StateBedrooms      = "bedrooms"
	StatePrice         = "price"
	StateDone          = "done"
)

// maxSearchResults caps the listing search executed when the funnel
// completes.
const maxSearchResults = 5

var purposeKeywords = map[string]domain.PropertyPurpose{
	"compra": domain.PurposeSale, "comprar": domain.PurposeSale, "venda": domain.PurposeSale,
	"buy": domain.PurposeSale, "sale": domain.PurposeSale,
	"locacao": domain.PurposeRent, "locação": domain.PurposeRent, "aluguel": domain.PurposeRent,
	"alugar": domain.PurposeRent, "rent": domain.PurposeRent,
}

var typeKeywords = map[string]domain.PropertyType{
	"ap": domain.PropertyApartment, "apto": domain.PropertyApartment,
	"apartamento": domain.PropertyApartment, "apartment": domain.PropertyApartment,
	"casa": domain.PropertyHouse, "house": domain.PropertyHouse,
}

// Funnel is the conversational state machine that collects real-estate
// search criteria from free text, one field per turn. Progress is
// persisted on every accepted input as the conversation's last_state
// plus an appended funnel event holding the merged criteria.
type Funnel struct {
	repo     messageRepo.Repository
	listings listingRepo.Repository
	logger   *slog.Logger
}

func NewFunnel(repo messageRepo.Repository, listings listingRepo.Repository, logger *slog.Logger) *Funnel {
	return &Funnel{repo: repo, listings: listings, logger: logger}
}

// Advance interprets userText against the conversation's current state.
// Rejected input re-prompts without mutating anything; accepted input
// persists the merged criteria and moves to the next state. The returned
// string is the bot's reply.
func (f *Funnel) Advance(conv *domain.Conversation, userText string) (string, error) {
	text := normalize(userText)

	state := conv.LastState
	if state == "" {
		state = StatePurpose
	}

	criteria := domain.SearchCriteria{}
	if payload, found, err := f.repo.LatestEventPayload(conv.ID, domain.EventFunnel); err != nil {
		return "", fmt.Errorf("load funnel progress: %w", err)
	} else if found {
		criteria = domain.DecodeCriteria(payload)
	}

	switch state {
	case StatePurpose:
		purpose, ok := purposeKeywords[text]
		if !ok {
			return "Olá! Você procura compra ou locação?", nil
		}
		criteria.Purpose = purpose
		if err := f.save(conv, StateLocationCity, criteria); err != nil {
			return "", err
		}
		if purpose == domain.PurposeSale {
			return "Legal! Você quer comprar. Me diga a cidade (ex: São Paulo).", nil
		}
		return "Perfeito! Você quer alugar. Qual a cidade?", nil

	case StateLocationCity:
		if len([]rune(text)) < 2 {
			return "Informe a cidade (ex: Campinas).", nil
		}
		criteria.City = strings.TrimSpace(userText)
		if err := f.save(conv, StateLocationState, criteria); err != nil {
			return "", err
		}
		return "Anotado. Qual o estado (UF)? (ex: SP)", nil

	case StateLocationState:
		uf, ok := parseUF(text)
		if !ok {
			return "Informe a UF com 2 letras (ex: SP).", nil
		}
		criteria.State = uf
		if err := f.save(conv, StateType, criteria); err != nil {
			return "", err
		}
		return "Certo. Prefere apartamento ou casa?", nil

	case StateType:
		propType, ok := typeKeywords[text]
		if !ok {
			return "Digite 'apartamento' ou 'casa'.", nil
		}
		criteria.Type = propType
		if err := f.save(conv, StateBedrooms, criteria); err != nil {
			return "", err
		}
		return "Quantos dormitórios? (ex: 2)", nil

	case StateBedrooms:
		n, ok := parseBedrooms(text)
		if !ok {
			return "Informe um número de dormitórios (ex: 2).", nil
		}
		criteria.Bedrooms = &n
		if err := f.save(conv, StatePrice, criteria); err != nil {
			return "", err
		}
		return "Qual a faixa de preço? (ex: 2000-3500 ou 'ate 3000')", nil

	case StatePrice:
		// Price is the final gate and never blocks completion: an
		// unparseable range still advances with whatever was extracted.
		minPrice, maxPrice := parsePrice(userText)
		if minPrice != nil {
			criteria.MinPrice = minPrice
		}
		if maxPrice != nil {
			criteria.MaxPrice = maxPrice
		}
		return f.complete(conv, criteria)

	default:
		// Terminal or unknown state: restart with fresh criteria.
		if err := f.save(conv, StatePurpose, domain.SearchCriteria{}); err != nil {
			return "", err
		}
		return "Vamos começar! Você procura compra ou locação?", nil
	}
}

// save persists the state transition: last_state on the conversation and
// an appended funnel event snapshotting the merged criteria.
func (f *Funnel) save(conv *domain.Conversation, nextState string, criteria domain.SearchCriteria) error {
	if err := f.repo.SetConversationState(conv.ID, nextState); err != nil {
		return fmt.Errorf("persist funnel state: %w", err)
	}
	conv.LastState = nextState
	if err := f.repo.AppendEvent(conv.ID, domain.EventFunnel, criteria.Encode()); err != nil {
		return fmt.Errorf("persist funnel progress: %w", err)
	}
	return nil
}

// complete records the lead and inquiry, runs the bounded listing search
// and moves the conversation to done.
func (f *Funnel) complete(conv *domain.Conversation, criteria domain.SearchCriteria) (string, error) {
	lead := &domain.Lead{
		TenantID:        conv.TenantID,
		Source:          "whatsapp",
		PreferencesJSON: criteria.Encode(),
		ConsentLGPD:     false,
	}
	if err := f.listings.CreateLead(lead); err != nil {
		return "", fmt.Errorf("create lead: %w", err)
	}

	inquiryType := domain.InquiryRent
	if criteria.Purpose == domain.PurposeSale {
		inquiryType = domain.InquiryBuy
	}
	inquiry := &domain.Inquiry{
		TenantID:    conv.TenantID,
		LeadID:      lead.ID,
		Type:        inquiryType,
		Status:      domain.InquiryNew,
		PayloadJSON: criteria.Encode(),
	}
	if err := f.listings.CreateInquiry(inquiry); err != nil {
		return "", fmt.Errorf("create inquiry: %w", err)
	}

	properties, err := f.listings.SearchProperties(conv.TenantID, criteria, maxSearchResults)
	if err != nil {
		return "", fmt.Errorf("search properties: %w", err)
	}

	if err := f.save(conv, StateDone, criteria); err != nil {
		return "", err
	}
	f.logger.Info("funnel_completed", "conversationId", conv.ID, "leadId", lead.ID, "results", len(properties))

	if len(properties) == 0 {
		return "Obrigado! Registrei sua preferência. No momento não encontrei imóveis com esse perfil. Quer ajustar a faixa de preço ou dormitórios?", nil
	}

	lines := []string{"Encontrei estas opções:"}
	for _, p := range properties {
		lines = append(lines, fmt.Sprintf("#%d - %s | R$ %s | %s-%s", p.ID, p.Title, formatPrice(p.Price), p.AddressCity, p.AddressState))
	}
	lines = append(lines, "Deseja ver mais detalhes? Envie o número do imóvel (ex: 3).")
	return strings.Join(lines, "\n"), nil
}
