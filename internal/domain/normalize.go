package domain

import "strings"

// NormalizeTaxID strips a CNPJ down to digits only.
func NormalizeTaxID(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeModality maps the free-form modality strings the platforms use
// onto the normalized enum. Unrecognized values normalize to unknown; the
// raw string is preserved separately on the listing.
func NormalizeModality(raw string) Modality {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = stripAccents(s)
	switch {
	case strings.Contains(s, "pregao") && strings.Contains(s, "presencial"):
		return ModalityPregaoPresencial
	case strings.Contains(s, "pregao"):
		return ModalityPregaoEletronico
	case strings.Contains(s, "concorrencia"):
		return ModalityConcorrencia
	case strings.Contains(s, "tomada"):
		return ModalityTomadaPrecos
	case strings.Contains(s, "convite"):
		return ModalityConvite
	case strings.Contains(s, "leilao"):
		return ModalityLeilao
	case strings.Contains(s, "dispensa"):
		return ModalityDispensa
	case strings.Contains(s, "inexigibilidade"):
		return ModalityInexigibilidade
	case strings.Contains(s, "dialogo"):
		return ModalityDialogoCompetitivo
	case strings.Contains(s, "credenciamento"):
		return ModalityCredenciamento
	default:
		return ModalityUnknown
	}
}

// NormalizeStatus maps platform status strings onto the normalized enum.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = stripAccents(s)
	switch {
	case strings.Contains(s, "divulgad"), strings.Contains(s, "abert"),
		strings.Contains(s, "recebendo"), strings.Contains(s, "publicad"),
		strings.Contains(s, "em andamento"):
		return StatusOpen
	case strings.Contains(s, "encerrad"), strings.Contains(s, "fechad"),
		strings.Contains(s, "concluid"):
		return StatusClosed
	case strings.Contains(s, "suspens"):
		return StatusSuspended
	case strings.Contains(s, "cancelad"), strings.Contains(s, "revogad"),
		strings.Contains(s, "anulad"):
		return StatusCancelled
	case strings.Contains(s, "homologad"), strings.Contains(s, "adjudicad"):
		return StatusAwarded
	default:
		return StatusUnknown
	}
}

var accentFold = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u",
	"ç", "c",
)

func stripAccents(s string) string {
	return accentFold.Replace(s)
}
