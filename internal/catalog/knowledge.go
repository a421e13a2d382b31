package catalog

import (
	"fmt"
	"strings"
)

// Service is a priced service offered by the barbershop.
type Service struct {
	Name  string
	Price int
}

// Services is the current price list, in pesos.
var Services = []Service{
	{Name: "Corte + asesoramiento", Price: 500},
	{Name: "Corte + asesoramiento + barba", Price: 600},
	{Name: "Barba perfilada", Price: 250},
	{Name: "Barba afeitada", Price: 200},
	{Name: "Cejas en base a visagismo", Price: 50},
}

// PriceList renders the price list as a bulleted block for replies and
// prompts.
func PriceList() string {
	var b strings.Builder
	for _, s := range Services {
		fmt.Fprintf(&b, "• %s → $%d\n", s.Name, s.Price)
	}
	return strings.TrimRight(b.String(), "\n")
}

// knowledge holds per-topic background injected into generative prompts so
// the model answers with real shop facts instead of inventing them.
var knowledge = map[string]string{
	"precios": "Lista de precios:\n" +
		"• Corte + asesoramiento → $500\n" +
		"• Corte + asesoramiento + barba → $600\n" +
		"• Barba perfilada → $250\n" +
		"• Barba afeitada → $200\n" +
		"• Cejas en base a visagismo → $50\n" +
		"Los precios incluyen el asesoramiento, no se cobra aparte.",
	"ubicacion": "La barbería queda en Juan José de Amézaga 2241, Montevideo. " +
		"Compartir siempre el link de Google Maps cuando pregunten cómo llegar.",
	"turnos": "Se trabaja únicamente con turnos agendados por el link de la agenda. " +
		"No se atiende sin reserva. Si no aparecen horarios es porque el día está lleno; " +
		"conviene agendar con uno o dos días de anticipación.",
	"servicios": "El corte incluye visagismo (análisis de estructura craneal y tipo de rostro), " +
		"asesoramiento, corte y styling final. También se hace solo barba y cejas. " +
		"No se hacen tatuajes.",
	"productos": "Se venden productos de la marca LC para mantener el corte, a $500 cada uno. " +
		"Se reservan por mensaje y se retiran en la barbería.",
	"pago": "Medios de pago: efectivo y transferencia. Tarjeta no, por ahora.",
	"cancelaciones": "Para cancelar o reagendar, el cliente cancela desde el mismo link de la agenda " +
		"y elige un horario nuevo. Pedimos cancelar con tiempo para liberar el horario.",
	"tiempo": "El corte con asesoramiento demora unos 45 minutos. Con barba, alrededor de una hora.",
}

// Knowledge returns the background block for an intent topic, or a general
// summary when the topic has no dedicated block.
func Knowledge(intent string) string {
	if block, ok := knowledge[intent]; ok {
		return block
	}
	return generalKnowledge()
}

func generalKnowledge() string {
	return "La barbería queda en Juan José de Amézaga 2241, Montevideo. " +
		"Se trabaja solo con turnos agendados por el link de la agenda.\n" +
		PriceList()
}
