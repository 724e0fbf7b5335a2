// Command bitcrapsd is a demo harness for the bitcraps consensus-and-mesh
// core: it mines identities, wires a small loopback mesh, drives a
// consensus engine per participant through a full craps round, and can
// verify a persisted consensus log's hash chain.
package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/bitcraps/core/consensus"
	"github.com/bitcraps/core/consensuslog"
	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
	"github.com/bitcraps/core/node"
	"github.com/bitcraps/core/storage"
	"github.com/bitcraps/core/transport"
	"github.com/bitcraps/core/xcrypto"
)

func main() {
	app := &cli.App{
		Name:                 "bitcrapsd",
		Usage:                "run and inspect the bitcraps consensus core",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			genkeyCommand,
			demoCommand,
			verifyCommand,
		},
		Action: func(c *cli.Context) error {
			return cli.ShowAppHelp(c)
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

var genkeyCommand = &cli.Command{
	Name:  "genkey",
	Usage: "mine a proof-of-work identity",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "difficulty", Value: int(identity.DefaultDifficulty), Usage: "required leading zero bits"},
	},
	Action: func(c *cli.Context) error {
		d := uint8(c.Int("difficulty"))
		pterm.Info.Printfln("mining identity at difficulty %d...", d)
		start := time.Now()
		id, err := identity.NewIdentity(d)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("mined in %s", time.Since(start))
		return pterm.DefaultTable.WithData(pterm.TableData{
			{"peer id", id.Id.String()},
			{"pow nonce", fmt.Sprintf("%d", id.Proof.Nonce)},
			{"difficulty", fmt.Sprintf("%d", id.Proof.Difficulty)},
		}).Render()
	},
}

var demoCommand = &cli.Command{
	Name:  "demo",
	Usage: "run a happy-path craps round over an in-process mesh",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "players", Value: 4, Usage: "number of participants (n >= 4 for BFT quorum)"},
		&cli.IntFlag{Name: "difficulty", Value: 8, Usage: "identity PoW difficulty (kept low for a fast demo)"},
		&cli.Uint64Flag{Name: "buy-in", Value: 1000, Usage: "starting balance per player"},
	},
	Action: runDemo,
}

// demoParticipant bundles one player's identity with its node for the
// duration of the demo round.
type demoParticipant struct {
	id   *identity.Identity
	node *node.Node
}

// discardLedger satisfies consensus.Ledger for the in-memory demo: the
// committed op has already been applied to engine state by the time it
// reaches the ledger, so there is nothing durable to do here. The verify
// command operates on a real consensuslog.Log instead.
type discardLedger struct{}

func (discardLedger) AppendGameOp(craps.GameId, craps.GameOp, consensus.QuorumCert) error {
	return nil
}

type noopEvidenceSink struct{}

func (noopEvidenceSink) Observe(craps.EvidenceRecord) {}

func runDemo(c *cli.Context) error {
	n := c.Int("players")
	if n < 4 {
		return fmt.Errorf("demo: need at least 4 players for a real BFT quorum, got %d", n)
	}
	difficulty := uint8(c.Int("difficulty"))
	buyIn := c.Uint64("buy-in")

	pterm.DefaultHeader.WithFullWidth().Println("bitcraps demo: happy-path craps round")
	pterm.Info.Println("minting identities and admission proofs...")

	idents := make([]*identity.Identity, n)
	order := make([]identity.PeerId, n)
	players := make(map[identity.PeerId]ed25519.PublicKey, n)
	var orderSeed []byte
	for i := 0; i < n; i++ {
		id, err := identity.NewIdentity(difficulty)
		if err != nil {
			return fmt.Errorf("mint identity %d: %w", i, err)
		}
		idents[i] = id
		order[i] = id.Id
		players[id.Id] = id.Public
		orderSeed = append(orderSeed, id.Id[:]...)
	}
	seedHash := xcrypto.Hash(orderSeed)
	var gameId craps.GameId
	copy(gameId[:], seedHash[:16])

	hub := transport.NewLoopbackHub()
	participants := make([]*demoParticipant, n)
	for i, id := range idents {
		lb := hub.Join(id.Id)
		state := craps.NewGameState(gameId)
		cfg := consensus.GameConfig{
			Id:      gameId,
			Self:    id.Id,
			Priv:    id.Private,
			Players: players,
			Order:   order,
		}
		participants[i] = &demoParticipant{
			id:   id,
			node: node.New(cfg, state, lb, discardLedger{}, noopEvidenceSink{}),
		}
	}

	leader := participants[0]
	pterm.Success.Printfln("leader for view 0: %s", leader.id.Id)

	committed := make(chan craps.GameOp, 1)
	leader.node.SetCommitHandler(func(op craps.GameOp, _ consensus.QuorumCert) {
		committed <- op
	})

	propose := func(op craps.GameOp) error {
		if err := leader.node.Propose(op); err != nil {
			return err
		}
		select {
		case <-committed:
			return nil
		case <-time.After(2 * time.Second):
			return fmt.Errorf("timed out waiting for commit of op kind %d", op.Kind)
		}
	}

	pterm.Info.Println("committing Join ops...")
	for _, p := range participants {
		if err := propose(craps.GameOp{Kind: craps.OpJoin, Game: gameId, Player: p.id.Id, BuyIn: buyIn}); err != nil {
			return fmt.Errorf("join %s: %w", p.id.Id, err)
		}
	}

	bettor := participants[0].id.Id
	pterm.Info.Printfln("%s places 50 on Pass Line...", bettor)
	if err := propose(craps.GameOp{
		Kind: craps.OpPlaceBet, Game: gameId, Player: bettor,
		Bet: craps.Bet{Player: bettor, Type: craps.BetPassLine, Amount: 50},
	}); err != nil {
		return fmt.Errorf("place bet: %w", err)
	}

	pterm.Info.Println("commit-reveal dice round...")
	rounds := make(map[identity.PeerId]*consensus.DiceRound, n)
	for _, p := range participants {
		dr, err := consensus.NewDiceRound()
		if err != nil {
			return err
		}
		rounds[p.id.Id] = dr
		if err := propose(dr.CommitOp(gameId, p.id.Id)); err != nil {
			return fmt.Errorf("dice commit %s: %w", p.id.Id, err)
		}
	}
	for _, p := range participants {
		if err := propose(rounds[p.id.Id].RevealOp(gameId, p.id.Id)); err != nil {
			return fmt.Errorf("dice reveal %s: %w", p.id.Id, err)
		}
	}
	if err := propose(consensus.ResolveOp(gameId)); err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	final := leader.node.Snapshot()
	pterm.Success.Printfln("round resolved: dice = (%d, %d)", final.LastRoll[0], final.LastRoll[1])

	rows := pterm.TableData{{"player", "balance"}}
	for _, p := range order {
		rows = append(rows, []string{p.String()[:12], fmt.Sprintf("%d", final.Players[p].Balance)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

var verifyCommand = &cli.Command{
	Name:  "verify",
	Usage: "verify a persisted consensus log's hash chain",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "db", Required: true, Usage: "path to the bbolt store"},
		&cli.StringFlag{Name: "game", Required: true, Usage: "hex-encoded 16-byte game id"},
	},
	Action: func(c *cli.Context) error {
		raw, err := hex.DecodeString(c.String("game"))
		if err != nil || len(raw) != 16 {
			return fmt.Errorf("verify: --game must be 32 hex chars (16 bytes)")
		}
		var gameId craps.GameId
		copy(gameId[:], raw)

		db, err := storage.Open(c.String("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		log, err := consensuslog.Open(db, gameId, func(craps.GameId) ([]byte, error) { return nil, nil })
		if err != nil {
			return err
		}
		if err := log.Verify(); err != nil {
			pterm.Error.Printfln("chain verification failed: %v", err)
			return err
		}
		pterm.Success.Printfln("chain intact: %d entries", log.Len())
		return nil
	},
}
