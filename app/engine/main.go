package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/database/mongoclient"
	"github.com/x-xyz/tradeengine/base/guard"
	"github.com/x-xyz/tradeengine/base/log"
	bValidator "github.com/x-xyz/tradeengine/base/validator"
	"github.com/x-xyz/tradeengine/domain"
	mmiddleware "github.com/x-xyz/tradeengine/middleware"
	"github.com/x-xyz/tradeengine/service/assetregistry"
	"github.com/x-xyz/tradeengine/service/ens"
	"github.com/x-xyz/tradeengine/service/ledger"
	"github.com/x-xyz/tradeengine/service/query"
	activity_delivery "github.com/x-xyz/tradeengine/stores/activity/delivery/http"
	activity_repository "github.com/x-xyz/tradeengine/stores/activity/repository"
	auction_delivery "github.com/x-xyz/tradeengine/stores/auction/delivery/http"
	auction_repository "github.com/x-xyz/tradeengine/stores/auction/repository"
	auction_usecase "github.com/x-xyz/tradeengine/stores/auction/usecase"
	auth_delivery "github.com/x-xyz/tradeengine/stores/auth/delivery/http"
	auth_middleware "github.com/x-xyz/tradeengine/stores/auth/delivery/http/middleware"
	auth_usecase "github.com/x-xyz/tradeengine/stores/auth/usecase"
	custody_repository "github.com/x-xyz/tradeengine/stores/custody/repository"
	custody_usecase "github.com/x-xyz/tradeengine/stores/custody/usecase"
	listing_delivery "github.com/x-xyz/tradeengine/stores/listing/delivery/http"
	listing_repository "github.com/x-xyz/tradeengine/stores/listing/repository"
	listing_usecase "github.com/x-xyz/tradeengine/stores/listing/usecase"
	marketcfg_delivery "github.com/x-xyz/tradeengine/stores/marketcfg/delivery/http"
	marketcfg_repository "github.com/x-xyz/tradeengine/stores/marketcfg/repository"
	marketcfg_usecase "github.com/x-xyz/tradeengine/stores/marketcfg/usecase"
	offer_delivery "github.com/x-xyz/tradeengine/stores/offer/delivery/http"
	offer_repository "github.com/x-xyz/tradeengine/stores/offer/repository"
	offer_usecase "github.com/x-xyz/tradeengine/stores/offer/usecase"
	settlement_delivery "github.com/x-xyz/tradeengine/stores/settlement/delivery/http"
	settlement_repository "github.com/x-xyz/tradeengine/stores/settlement/repository"
	settlement_usecase "github.com/x-xyz/tradeengine/stores/settlement/usecase"
)

func init() {
	pflag.String("config", "infra/configs/config.yaml", "path to config file")
	pflag.Parse()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		panic(err)
	}

	viper.SetConfigType("yaml")
	viper.SetConfigFile(viper.GetString("config"))
	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	// init echo
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{}))
	e.Use(middleware.RequestID())
	middL := mmiddleware.InitMiddleware()
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middleware.CORS())
	e.Validator = bValidator.NewCustomValidator(validator.New())

	context := ctx.Background()

	// init mongo client
	context.Info("init mongo")
	uri := viper.GetString("mongo.uri")
	authDBName := viper.GetString("mongo.authDBName")
	dbName := viper.GetString("mongo.dbName")
	enableSSL := viper.GetBool("mongo.enableSSL")
	mongoClient := mongoclient.MustConnectMongoClient(uri, authDBName, dbName, enableSSL, true)
	q := query.New(mongoClient)

	engineAccount := domain.EscrowAccount

	// boundaries: the balance book and the asset registry the engine
	// escrows against
	book := ledger.New()
	registry := assetregistry.New(engineAccount)

	var binder domain.ControllerBinder
	if rpcUrl := viper.GetString("resolver.rpcUrl"); rpcUrl != "" {
		binder = ens.New(
			rpcUrl,
			viper.GetString("resolver.signerKey"),
			viper.GetInt64("resolver.chainId"),
		)
	}

	reentrancyGuard := guard.New()

	// repositories
	configRepo := marketcfg_repository.NewConfigRepo(q)
	holdRepo := custody_repository.NewHoldRepo(q)
	activityRepo := activity_repository.NewActivityRepo(q)
	listingRepo := listing_repository.NewListingRepo(q)
	auctionRepo := auction_repository.NewAuctionRepo(q)
	offerRepo := offer_repository.NewOfferRepo(q)
	nonceRepo := settlement_repository.NewNonceRepo(q)

	// usecases
	adminAddress := domain.Address(viper.GetString("engine.admin"))
	marketCfg := marketcfg_usecase.New(&marketcfg_usecase.ConfigUseCaseCfg{
		ConfigRepo: configRepo,
		Admin:      adminAddress,
	})
	custody := custody_usecase.New(&custody_usecase.CustodyUseCaseCfg{
		HoldRepo: holdRepo,
		Registry: registry,
		Engine:   engineAccount,
	})
	listing := listing_usecase.New(&listing_usecase.ListingUseCaseCfg{
		ListingRepo:  listingRepo,
		ActivityRepo: activityRepo,
		Custody:      custody,
		MarketCfg:    marketCfg,
		Ledger:       book,
		Guard:        reentrancyGuard,
	})
	auction := auction_usecase.New(&auction_usecase.AuctionUseCaseCfg{
		AuctionRepo:  auctionRepo,
		ActivityRepo: activityRepo,
		Custody:      custody,
		MarketCfg:    marketCfg,
		Ledger:       book,
		Guard:        reentrancyGuard,
	})
	offer := offer_usecase.New(&offer_usecase.OfferUseCaseCfg{
		OfferRepo:    offerRepo,
		ActivityRepo: activityRepo,
		MarketCfg:    marketCfg,
		Ledger:       book,
		Registry:     registry,
		Guard:        reentrancyGuard,
	})
	settlement := settlement_usecase.New(&settlement_usecase.SettlementUseCaseCfg{
		NonceRepo:    nonceRepo,
		ActivityRepo: activityRepo,
		MarketCfg:    marketCfg,
		Ledger:       book,
		Registry:     registry,
		Binder:       binder,
		Guard:        reentrancyGuard,
	})
	auth := auth_usecase.New(&auth_usecase.AuthUseCaseCfg{
		JwtSecret:  viper.GetString("auth.jwtSecret"),
		SigningMsg: viper.GetString("auth.signingMsg"),
	})

	// delivery
	authMw := auth_middleware.New(auth, []string{string(adminAddress)})
	auth_delivery.New(e, auth, viper.GetString("auth.signingMsg"))
	listing_delivery.New(e, authMw, listing)
	auction_delivery.New(e, authMw, auction)
	offer_delivery.New(e, authMw, offer)
	settlement_delivery.New(e, authMw, settlement)
	marketcfg_delivery.New(e, authMw, marketCfg)
	activity_delivery.New(e, activityRepo)

	go func() {
		if err := e.Start(viper.GetString("server.address")); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")
	shutdownCtx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}
}
