package intent

import "strings"

// staticKeywords is the first, cheapest resolution layer: a fixed table of
// high-signal phrases per topic. Order matters, first hit wins.
var staticKeywords = []struct {
	intent  string
	phrases []string
}{
	{"turnos", []string{"turno", "agendar", "agenda", "reservar", "reserva", "tenes hora", "tienes hora"}},
	{"precios", []string{"precio", "cuanto sale", "cuánto sale", "cuanto cuesta", "cuánto cuesta", "tarifa", "cuanto vale", "cuánto vale"}},
	{"ubicacion", []string{"ubicacion", "ubicación", "direccion", "dirección", "donde queda", "dónde queda", "donde estan", "dónde están", "como llego", "cómo llego"}},
	{"servicios", []string{"barba", "afeitada", "perfilada", "cejas", "visagismo", "asesoramiento"}},
	{"productos", []string{"producto", "cera", "pomada"}},
	{"tiempo", []string{"cuanto demora", "cuánto demora", "cuanto tarda", "cuánto tarda"}},
	{"pago", []string{"tarjeta", "transferencia", "efectivo", "medios de pago"}},
	{"cancelaciones", []string{"cancelar", "reagendar", "cambiar el turno", "cambiar turno"}},
}

// matchStatic returns the topic for a high-signal phrase in text, or "".
func matchStatic(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range staticKeywords {
		for _, phrase := range entry.phrases {
			if strings.Contains(lower, phrase) {
				return entry.intent
			}
		}
	}
	return ""
}
