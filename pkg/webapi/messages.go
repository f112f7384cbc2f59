package webapi

// Response texts. The front end matches on these, so they must not change.
const (
	msgOnline         = "¡El backend del Asistente de Lectoescritura está en línea y listo para recibir peticiones POST en /generate-plan!"
	msgIncomplete     = "Petición incompleta. Faltan parámetros."
	msgTooLarge       = "La petición es demasiado grande."
	msgConfiguration  = "Error crítico de configuración del servidor."
	msgInternal       = "Ocurrió un error interno al generar el plan."
	msgOriginRejected = "Not allowed by CORS"

	// MsgListening is logged once the listener is bound.
	MsgListening = "El servidor de planes de clase está activo y escuchando en el puerto %s"
	// MsgMissingAPIKey is logged at startup when GEMINI_API_KEY is unset.
	MsgMissingAPIKey = "ALERTA DE CONFIGURACIÓN: La variable de entorno GEMINI_API_KEY no ha sido configurada."
)
