package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/bpmnchat/pkg/domain"
)

// Bot messages. The dialogue language is Spanish.
const (
	msgGreeting      = "¡Hola!"
	msgCatchPrompt   = "Responda con un número."
	msgUnhandled     = "Parece que hemos llegado a una parte no manejada del proceso o al final del flujo actual. Por favor, intente iniciar un nuevo chat si tiene más preguntas."
	msgFailure       = "Ocurrió un error inesperado. Por favor, intente de nuevo."
	msgNoOptions     = "No hay opciones disponibles para elegir. Por favor, intente iniciar un nuevo chat."
	msgSessionClosed = "Sesión de chat finalizada."
	msgParallelFirst = "Continuaré conversando sobre la primera actividad. Por favor, esté atento a las otras actividades en el diagrama."
)

var defaultChoices = []string{"sí", "no"}

func exclusivePrompt(node *domain.Node, choices []string, named bool) string {
	msg := fmt.Sprintf("Estamos en una decisión en \"%s\".", node.Name)
	if named {
		return msg + fmt.Sprintf(" Por favor, elija: %s.", strings.Join(choices, " o "))
	}
	return msg + " Por favor, escriba 'sí' o 'no' para continuar."
}

func inclusivePrompt(node *domain.Node, choices []string, named bool) string {
	msg := fmt.Sprintf("Estamos en una decisión inclusiva en \"%s\". Puede elegir una de las siguientes opciones: ", node.Name)
	if named {
		return msg + strings.Join(choices, " o ") + "."
	}
	return msg + "Por favor, escriba 'sí' o 'no' para continuar."
}

func parallelMessage(node *domain.Node, targets []string) string {
	msg := fmt.Sprintf("Hemos llegado a un punto de concurrencia en \"%s\". Las siguientes actividades están ocurriendo en paralelo: %s.",
		node.Name, strings.Join(targets, ", "))
	if len(targets) > 1 {
		msg += " " + msgParallelFirst
	}
	return msg
}

func eventPrompt(node *domain.Node, choices []string, hasFlows bool) string {
	msg := fmt.Sprintf("Estamos esperando un evento en \"%s\". ", node.Name)
	if hasFlows {
		return msg + fmt.Sprintf("Por favor, indique qué evento ha ocurrido: %s.", strings.Join(choices, " o "))
	}
	return msg + "No se especificaron eventos. Por favor, intente con 'continuar'."
}

func throwMessage(node *domain.Node) string {
	return fmt.Sprintf("Ha ocurrido un evento: \"%s\".", node.Name)
}

func closingMessage(node *domain.Node) string {
	return fmt.Sprintf("El proceso ha concluido: \"%s\". ¡Gracias por usar el chatbot!", node.Name)
}

func repromptMessage(choices []string) string {
	return fmt.Sprintf("No entendí su elección. Por favor, responda con una de las siguientes opciones: %s.", strings.Join(choices, ", "))
}

func captureAck(format, value string) string {
	if format == "" {
		return fmt.Sprintf("Recibido: \"%s\". Procesando...", value)
	}
	if strings.Contains(format, "%s") {
		return strings.ReplaceAll(format, "%s", value)
	}
	return format
}
