package ens

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	goens "github.com/wealdtech/go-ens/v3"

	"github.com/x-xyz/tradeengine/base/ctx"
	"github.com/x-xyz/tradeengine/base/log"
	"github.com/x-xyz/tradeengine/domain"
)

type impl struct {
	client  *ethclient.Client
	signer  *ecdsa.PrivateKey
	chainId *big.Int
}

// New dials the rpc endpoint and prepares a transactor key for resolver
// updates. Panics on a bad endpoint or key, mirroring how the engine treats
// broken wiring at startup.
func New(rpc, signerKeyHex string, chainId int64) domain.ControllerBinder {
	client, err := ethclient.Dial(rpc)
	if err != nil {
		panic(err)
	}
	key, err := crypto.HexToECDSA(signerKeyHex)
	if err != nil {
		panic(err)
	}
	return &impl{
		client:  client,
		signer:  key,
		chainId: big.NewInt(chainId),
	}
}

// BindController points name at controller through the name's resolver. The
// settlement path treats this as fire and forget; callers log failures and
// move on.
func (im *impl) BindController(c ctx.Ctx, name string, controller domain.Address) error {
	resolver, err := goens.NewResolver(im.client, name)
	if err != nil {
		c.WithFields(log.Fields{
			"err":  err,
			"name": name,
		}).Error("failed to goens.NewResolver")
		return err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(im.signer, im.chainId)
	if err != nil {
		c.WithFields(log.Fields{"err": err}).Error("failed to build transactor")
		return err
	}
	tx, err := resolver.SetAddress(opts, common.HexToAddress(string(controller)))
	if err != nil {
		c.WithFields(log.Fields{
			"err":        err,
			"name":       name,
			"controller": controller,
		}).Error("failed to resolver.SetAddress")
		return err
	}
	c.WithFields(log.Fields{
		"name":       name,
		"controller": controller,
		"tx":         tx.Hash().Hex(),
	}).Info("controller binding updated")
	return nil
}

// Resolve looks a name up through ENS.
func Resolve(client *ethclient.Client, name string) (domain.Address, error) {
	addr, err := goens.Resolve(client, name)
	if err != nil {
		return "", err
	}
	return domain.Address(addr.String()).ToLower(), nil
}
