package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/a2a-go/examples/longrunning"
	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/logging"
	"github.com/theapemachine/a2a-go/pkg/push"
	"github.com/theapemachine/a2a-go/pkg/service"
	"github.com/theapemachine/a2a-go/pkg/session"
	"github.com/theapemachine/a2a-go/pkg/stores"
	"github.com/theapemachine/a2a-go/pkg/transport/httpbind"
)

var (
	agentKeyFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run an A2A agent server",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveAgent()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&agentKeyFlag, "agent", "a", "default", "Config key under agent.<key> describing this agent")
}

func serveAgent() error {
	logging.Init(viper.GetString("log.level"), true)

	card := a2a.NewAgentCardFromConfig(agentKeyFlag)
	if card.URL == "" {
		card.URL = fmt.Sprintf("http://%s:%d", viper.GetString("server.host"), viper.GetInt("server.port"))
	}

	log.Info(card.String())

	keys := session.NewKeyedMutex()
	taskStore := stores.NewInMemoryTaskStore()
	messageStore := stores.NewInMemoryMessageStore()
	pushStore := stores.NewInMemoryPushConfigStore()

	senderAuth, err := push.NewSenderAuth()
	if err != nil {
		return fmt.Errorf("build push sender auth: %w", err)
	}
	pushSender := push.NewHTTPSender(senderAuth)

	manager := session.NewManager(keys, taskStore, pushStore, pushSender)
	executor := longrunning.New(os.Getenv("OPENAI_API_KEY"), viper.GetString("agent.model"))

	handler := service.NewHandler(keys, taskStore, messageStore, pushStore, manager, executor, card, nil)
	srv := httpbind.NewServer(handler, card, senderAuth)

	addr := fmt.Sprintf("%s:%d", viper.GetString("server.host"), viper.GetInt("server.port"))

	go func() {
		log.Info("a2a server listening", "addr", addr)
		if err := srv.Listen(addr); err != nil {
			log.Fatal("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")

	return srv.Shutdown()
}

var longServe = `
Serve an A2A agent over HTTP: a JSON-RPC endpoint at /rpc for the nine A2A
methods, an SSE endpoint at /events for message/stream and
tasks/resubscribe, and the agent card at /.well-known/agent.json.
`
