package lsp

import (
	"fmt"
	"time"

	"fortio.org/safecast"
	"github.com/google/uuid"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// CountDownCommand counts down from ten, one message per tick, while
// other requests keep being served.
const CountDownCommand = "jacls.countDownBlocking"

const countDownFrom = 10

func (s *Server) executeCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if params.Command != CountDownCommand {
		return nil, fmt.Errorf("lsp: unknown command %q", params.Command)
	}
	go s.countDown(ctx.Notify, ctx.Call)
	return nil, nil
}

// countDown never touches the engine. Progress is reported under a fresh
// work-done token alongside the plain messages.
func (s *Server) countDown(notify glsp.NotifyFunc, call glsp.CallFunc) {
	token := protocol.ProgressToken{Value: uuid.NewString()}
	if call != nil {
		call(protocol.ServerWindowWorkDoneProgressCreate, protocol.WorkDoneProgressCreateParams{Token: token}, nil)
	}
	notify(protocol.MethodProgress, protocol.ProgressParams{
		Token: token,
		Value: protocol.WorkDoneProgressBegin{Kind: "begin", Title: "Counting down"},
	})
	for i := countDownFrom - 1; i >= 0; i-- {
		message := fmt.Sprintf("Counting down... %d", i)
		notify(protocol.ServerWindowShowMessage, protocol.ShowMessageParams{
			Type:    protocol.MessageTypeInfo,
			Message: message,
		})
		percentage, _ := safecast.Conv[uint32]((countDownFrom - i) * 100 / countDownFrom)
		notify(protocol.MethodProgress, protocol.ProgressParams{
			Token: token,
			Value: protocol.WorkDoneProgressReport{Kind: "report", Message: &message, Percentage: &percentage},
		})
		time.Sleep(s.tick)
	}
	notify(protocol.MethodProgress, protocol.ProgressParams{
		Token: token,
		Value: protocol.WorkDoneProgressEnd{Kind: "end"},
	})
}
