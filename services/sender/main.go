// Service to emit test events received on stdin. Useful for poking the
// noisebox without touching the buttons:
//
//	echo '{"topic": "gpio", "device": "button.blaster", "command": "on"}' | noisypi service sender
package sender

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/noisypi/noisypi/pubsub"
	"github.com/noisypi/noisypi/services"
)

// Service sender
type Service struct{}

func (self *Service) ID() string {
	return "sender"
}

func (self *Service) Run() error {
	b := bufio.NewScanner(os.Stdin)
	for b.Scan() {
		ev := pubsub.Parse(b.Text(), "")
		if ev != nil {
			fmt.Println(ev)
			services.Publisher.Emit(ev)
		} else {
			fmt.Println("Parse failed")
		}
	}

	// give it time to send
	time.Sleep(500 * time.Millisecond)
	return nil
}
