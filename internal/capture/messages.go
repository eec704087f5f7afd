package capture

import "github.com/tomasrey88/plantavoz/internal/session"

// Conversational copy. Plant staff operate in Spanish; keep these plain and
// short, they render inside Discord messages.
const (
	msgStillProcessing    = "Todavía estoy procesando tu mensaje anterior, dame un segundo."
	msgAudioReceived      = "Recibí tu audio, lo estoy procesando…"
	msgAudioNotExpected   = "Ahora mismo espero una respuesta de texto o una selección, no un audio."
	msgQueueFull          = "Hay demasiados audios en cola, probá de nuevo en unos minutos."
	msgTranscriptTooShort = "No llegué a entender el dictado. ¿Podés repetirlo?"
	msgCancelled          = "Listo, cancelé la carga."
	msgCaptureFailed      = "Algo salió mal y no pude guardar la carga. Probá de nuevo en un rato."

	msgChoiceStale  = "Esa opción ya no está disponible. Escribí el nombre, o 'cancelar' para abortar."
	msgPickMachine  = "¿De qué máquina se trata?"
	msgPickPerson   = "¿A quién te referís?"
	msgMachineAgain = "Sigo sin encontrar esa máquina, así que cancelé la carga. Podés empezar de nuevo."

	msgMachineUnknown = "No identifiqué la máquina. Escribí su nombre, o 'cancelar' para abortar."
	msgPersonUnknown  = "No encontré a \"%s\". Escribí el nombre correcto, 'registrar' para crear un contacto nuevo, o 'nadie' para seguir sin asignar."

	msgTaskCreated      = "Tarea creada: **%s** asignada a %s."
	msgReminderCreated  = "Recordatorio agendado: **%s**."
	msgFailureCreated   = "Reporte de falla registrado para **%s**."
	msgWorkOrderCreated = "Orden de trabajo creada: **%s**."
)

// declineWords mark an explicit refusal to name an assignee.
var declineWords = map[string]bool{
	"nadie":       true,
	"no":          true,
	"sin asignar": true,
	"ninguno":     true,
}

// registerWords ask to save the unknown assignee as a new contact.
var registerWords = map[string]bool{
	"registrar": true,
	"registrá":  true,
	"alta":      true,
}

func promptFor(kind session.Kind) string {
	switch kind {
	case session.KindFailure:
		return "Contame la falla: qué máquina es y qué está pasando. Podés mandar un audio."
	case session.KindWorkOrder:
		return "Dictame la orden de trabajo: máquina, qué hay que hacer y para cuándo. Podés mandar un audio."
	default:
		return "Dictame la tarea o el recordatorio. Podés mandar un audio."
	}
}
