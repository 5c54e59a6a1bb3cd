//go:build ignore

// Run: go run ./build-tools/snapgen.go -redis localhost:6379 -day 2024-03-10 -hours 24 -entities 10000 -churn 0.02

package main

import (
	"assetactivity/internal/capture"
	"assetactivity/internal/domain"
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	markets   = []string{domain.MarketBBL, domain.MarketBoost}
	protocols = []string{domain.ProtocolDAODAO, domain.ProtocolEnterprise}
)

func main() {
	var (
		addr     = flag.String("redis", "localhost:6379", "redis address")
		prefix   = flag.String("prefix", "activity:", "artifact key prefix")
		dayStr   = flag.String("day", time.Now().UTC().Format(time.DateOnly), "day to generate, YYYY-MM-DD")
		hours    = flag.Int("hours", 24, "hourly captures to write, 1..24")
		entities = flag.Int("entities", 10000, "collection size")
		owners   = flag.Int("owners", 500, "distinct owner addresses")
		churn    = flag.Float64("churn", 0.02, "probability an entity changes per hour")
		gap      = flag.Float64("gap", 0.001, "probability an entity is missing from a capture")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	day, err := time.Parse(time.DateOnly, *dayStr)
	if err != nil {
		fmt.Printf("bad -day: %v\n", err)
		os.Exit(1)
	}
	if *hours < 1 || *hours > 24 {
		fmt.Println("-hours must be in 1..24")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: *addr})
	defer rdb.Close()
	if err = rdb.Ping(ctx).Err(); err != nil {
		fmt.Printf("redis ping: %v\n", err)
		os.Exit(1)
	}

	rnd := mrand.New(mrand.NewSource(*seed))
	pool := make([]string, *owners)
	for i := range pool {
		pool[i] = "terra1" + randHex(19)
	}

	state := make(domain.Snapshot, *entities)
	for id := 1; id <= *entities; id++ {
		state[domain.EntityID(id)] = domain.Record{Owner: pool[rnd.Intn(len(pool))]}
	}

	var changes int
	for h := 0; h < *hours; h++ {
		if ctx.Err() != nil {
			break
		}

		if h > 0 {
			for id, rec := range state {
				if rnd.Float64() < *churn {
					state[id] = mutate(rnd, rec, pool)
					changes++
				}
			}
		}

		snap := make(domain.Snapshot, len(state))
		for id, rec := range state {
			if rnd.Float64() < *gap {
				continue
			}
			snap[id] = rec
		}

		takenAt := day.Add(time.Duration(h) * time.Hour)
		raw, err := capture.Encode(snap, takenAt)
		if err != nil {
			fmt.Printf("encode: %v\n", err)
			os.Exit(1)
		}

		hourKey := takenAt.Format("2006-01-02T15")
		_, err = rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, *prefix+"snapshot:"+hourKey, raw, 0)
			p.ZAdd(ctx, *prefix+"index:hour", redis.Z{Score: 0, Member: hourKey})
			return nil
		})
		if err != nil {
			fmt.Printf("write %s: %v\n", hourKey, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s: %d records (%d bytes)\n", hourKey, len(snap), len(raw))
	}

	fmt.Printf("done: %d entity changes across %d captures\n", changes, *hours)
}

// one random state change per call
func mutate(rnd *mrand.Rand, rec domain.Record, pool []string) domain.Record {
	switch rnd.Intn(4) {
	case 0:
		rec.Owner = pool[rnd.Intn(len(pool))]
		if rnd.Intn(2) == 0 {
			// sold off a marketplace
			rec.BBLListed, rec.BoostListed = false, false
		}
	case 1:
		if markets[rnd.Intn(len(markets))] == domain.MarketBBL {
			rec.BBLListed = !rec.BBLListed
		} else {
			rec.BoostListed = !rec.BoostListed
		}
	case 2:
		if protocols[rnd.Intn(len(protocols))] == domain.ProtocolDAODAO {
			rec.DAODAOStaked = !rec.DAODAOStaked
		} else {
			rec.EnterpriseStaked = !rec.EnterpriseStaked
		}
	case 3:
		rec.Broken = !rec.Broken
	}
	return rec
}

func randHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
