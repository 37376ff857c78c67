package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/Inn-Chain/chain-hotel-bookings/internal/config"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/escrow"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/hooks"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/logging"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/server"
	"github.com/Inn-Chain/chain-hotel-bookings/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}
	log.Logger = logging.NewLogger(cfg.Env, cfg.LogLevel)
	log.Info().
		Int64("chain_id", cfg.Chain.ChainID).
		Str("innchain", cfg.Contracts.InnChain.Hex()).
		Str("token", cfg.Contracts.USDC.Hex()).
		Msg("starting innchain client")

	metrics := escrow.NewMetrics()
	adapter, err := escrow.New(escrow.Config{
		InnChain:            cfg.Contracts.InnChain,
		Token:               cfg.Contracts.USDC,
		StartBlock:          cfg.Contracts.StartBlock,
		ReceiptPollInterval: cfg.Service.ReceiptPoll,
	}, escrow.WithMetrics(metrics), escrow.WithLogger(log.Logger))
	if err != nil {
		log.Fatal().Err(err).Msg("escrow adapter error")
	}
	defer adapter.Close()

	connector := wallet.RPCConnector{
		RPCURL:        cfg.Chain.RPCURL,
		ChainID:       cfg.Chain.ChainID,
		PrivateKeyHex: cfg.Chain.PrivateKey,
	}
	if cfg.Chain.Account != (common.Address{}) {
		connector.Account = cfg.Chain.Account.Hex()
	}
	session := wallet.NewSession(connector, log.Logger)
	defer session.Disconnect()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var statusServer *server.Server
	if cfg.Service.MetricsAddr != "" {
		statusServer = server.NewServer(cfg.Service.MetricsAddr, metrics.Handler(), session, log.Logger)
		go func() {
			if err := statusServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status server stopped")
			}
		}()
	}

	hotels := hooks.NewHotelsQuery(adapter, session, log.Logger)
	defer hotels.Watch(func(st hooks.State[[]escrow.Hotel]) {
		switch st.Status {
		case hooks.Ready:
			for _, h := range st.Data {
				log.Info().Uint64("hotel", h.ID).Str("name", h.Name).Int("classes", len(h.Classes)).Msg("hotel")
			}
		case hooks.Failed:
			log.Warn().Str("message", st.Message).Msg("hotels unavailable")
		}
	})()
	hotels.Start(ctx)
	defer hotels.Close()

	bookings := hooks.NewCustomerBookingsQuery(adapter, session, log.Logger)
	defer bookings.Watch(func(st hooks.State[[]escrow.BookingDetails]) {
		if st.Status != hooks.Ready {
			return
		}
		for _, b := range st.Data {
			log.Info().
				Uint64("booking", b.ID).
				Str("hotel", b.HotelName).
				Str("class", b.ClassName).
				Str("total", b.TotalAmount).
				Str("status", string(b.State)).
				Msg("booking")
		}
	})()
	bookings.Start(ctx)
	defer bookings.Close()

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Service.RPCTimeout)
	conn, err := session.Connect(connectCtx)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("wallet connect failed")
	} else {
		subscribe(ctx, adapter, conn)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if statusServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = statusServer.Shutdown(shutdownCtx)
	}
}

// subscribe tails both escrow events. Plain HTTP endpoints cannot push logs, in which
// case the listeners are skipped.
func subscribe(ctx context.Context, adapter *escrow.Adapter, conn *wallet.Connection) {
	_, err := adapter.SubscribeBookingCreated(ctx, conn, func(ev escrow.BookingCreated) {
		log.Info().
			Uint64("booking", ev.BookingID).
			Uint64("hotel", ev.HotelID).
			Str("customer", ev.Customer.Hex()).
			Str("tx", ev.TxHash.Hex()).
			Msg("booking created")
	})
	if err != nil {
		log.Warn().Err(err).Msg("booking events unavailable")
		return
	}

	_, err = adapter.SubscribeCheckInConfirmed(ctx, conn, func(ev escrow.CheckInConfirmed) {
		log.Info().
			Uint64("booking", ev.BookingID).
			Str("released", ev.RoomCostReleased).
			Str("tx", ev.TxHash.Hex()).
			Msg("check-in confirmed")
	})
	if err != nil {
		log.Warn().Err(err).Msg("check-in events unavailable")
	}
}
