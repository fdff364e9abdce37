package routing

// Default returns the rules for the shipping and document-verification
// dialogues the bundled diagrams use.
func Default() *Table {
	return NewTable(
		Rule{
			Node: "Qué quiere realizar el usuario?",
			Patterns: []Pattern{
				{Contains: []string{"seguimiento"}, Target: "Seguimiento"},
				{Contains: []string{"envio", "envío"}, Target: "Envío"},
				{Contains: []string{"consulta"}, Target: "Consulta"},
			},
		},
		Rule{
			Node: "Solicitud Documentación del usuario",
			Patterns: []Pattern{
				{Contains: []string{"sí", "si"}, Target: "Verificación de la documentación (¿Documentación completa?)"},
				{Contains: []string{"no"}, Target: "Envío cancelado"},
			},
		},
		Rule{
			Node: "Verificación de la documentación (¿Documentación completa?)",
			OnNegative: &Negative{
				ResetTo: "Solicitud Documentación del usuario",
				Message: "Documentación incompleta. Por favor, vuelva a enviar los documentos requeridos.",
			},
		},
		Rule{Node: "Solicitud número de seguimiento", Capture: &Capture{Key: "tracking_number"}},
		Rule{Node: "Consulta sobre el envío asociado", Capture: &Capture{Key: "inquiry"}},
		Rule{Node: "Validación de identidad", Capture: &Capture{Key: "identity"}},
	)
}
