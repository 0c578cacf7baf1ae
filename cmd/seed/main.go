package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"prepdeck/internal/config"
	"prepdeck/internal/dispatch"
	"prepdeck/internal/model"
	"prepdeck/internal/repository"
)

type seedEntry struct {
	question model.Question
	rubric   *model.Rubric
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.MongoDatabase)
	repo := repository.NewQuestionRepo(db)

	var jobs dispatch.Dispatcher = dispatch.Nop{}
	if cfg.AMQPURL != "" {
		publisher, err := dispatch.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, zap.NewNop())
		if err != nil {
			log.Printf("warning: AMQP unavailable, skipping job dispatch: %v", err)
		} else {
			jobs = publisher
		}
	}
	defer jobs.Close()

	seeded, skipped := 0, 0
	for _, entry := range bank() {
		existing, err := repo.GetByID(ctx, entry.question.ID)
		if err != nil {
			log.Fatalf("failed to check question %s: %v", entry.question.ID, err)
		}
		if existing != nil {
			skipped++
			continue
		}

		if err := repo.Create(ctx, &entry.question); err != nil {
			log.Fatalf("failed to insert question %s: %v", entry.question.ID, err)
		}

		if entry.rubric != nil {
			entry.rubric.QuestionID = entry.question.ID
			if err := repo.CreateRubric(ctx, entry.rubric); err != nil {
				log.Fatalf("failed to insert rubric for %s: %v", entry.question.ID, err)
			}
		} else {
			// No authored rubric; queue generation so the question becomes usable.
			if err := jobs.DispatchRubric(dispatch.RubricJob{
				QuestionID:   entry.question.ID,
				QuestionText: entry.question.Text,
				Domain:       entry.question.Domain,
			}); err != nil {
				log.Printf("warning: failed to dispatch rubric job for %s: %v", entry.question.ID, err)
			}
		}

		if err := jobs.DispatchEmbedding(dispatch.EmbeddingJob{
			EntityType: "question",
			EntityID:   entry.question.ID,
			Text:       entry.question.Text,
		}); err != nil {
			log.Printf("warning: failed to dispatch embedding job for %s: %v", entry.question.ID, err)
		}
		seeded++
	}

	log.Printf("seed complete: %d inserted, %d already present", seeded, skipped)
}

func mustRubric(questionID string, mustHave, goodToHave, redFlags []string, idealAnswer string) *model.Rubric {
	r, err := model.NewRubric(questionID, mustHave, goodToHave, redFlags, idealAnswer)
	if err != nil {
		log.Fatalf("invalid seed rubric for %s: %v", questionID, err)
	}
	return r
}

func bank() []seedEntry {
	return []seedEntry{
		{
			question: model.Question{
				ID:         "q-be-hashmap",
				Domain:     "backend",
				Topic:      "data-structures",
				SubTopic:   "hash-tables",
				Difficulty: model.DifficultyMedium,
				Text:       "Explain how a hash map works internally and what happens when two keys collide.",
				Tags:       []string{"fundamentals", "hashing"},
				Hints: []string{
					"Think about how a key becomes an array index.",
					"What options exist when two keys land in the same bucket?",
					"What triggers a resize, and what does it cost?",
				},
				CompanyTags: []string{"generic"},
				Active:      true,
			},
			rubric: mustRubric("q-be-hashmap",
				[]string{
					"hashing function maps keys to buckets",
					"collision resolution with chaining or open addressing",
					"load factor triggers resizing",
					"average constant time lookup",
					"worst case degrades to linear",
				},
				[]string{"treeification of long chains", "good hash distribution matters"},
				[]string{"lookups are always constant time"},
				"A hash map hashes each key to a bucket index, resolves collisions by chaining or probing, and resizes when the load factor passes a threshold, keeping lookups O(1) on average but O(n) in the worst case."),
		},
		{
			question: model.Question{
				ID:         "q-be-index",
				Domain:     "backend",
				Topic:      "databases",
				SubTopic:   "indexing",
				Difficulty: model.DifficultyMedium,
				Text:       "When does a database index speed up a query, and when does it hurt?",
				Tags:       []string{"sql", "performance"},
				Hints: []string{
					"Consider what the database does without an index.",
					"Indexes are not free on writes.",
				},
				Active: true,
			},
			rubric: mustRubric("q-be-index",
				[]string{
					"index avoids full table scan",
					"b-tree ordered structure enables range queries",
					"writes pay index maintenance cost",
					"selectivity determines usefulness",
				},
				[]string{"covering index avoids table lookup", "composite index column order matters"},
				[]string{"more indexes always make queries faster"},
				""),
		},
		{
			question: model.Question{
				ID:         "q-be-cap",
				Domain:     "backend",
				Topic:      "distributed-systems",
				Difficulty: model.DifficultyHard,
				Text:       "Explain the CAP theorem and how real systems position themselves within it.",
				Tags:       []string{"distributed", "theory"},
				Hints: []string{
					"Start from what happens during a network partition.",
				},
				Active: true,
			},
			rubric: mustRubric("q-be-cap",
				[]string{
					"consistency availability partition tolerance tradeoff",
					"partition forces choosing consistency or availability",
					"partitions cannot be avoided in practice",
					"examples of cp and ap systems",
				},
				[]string{"pacelc extends the model with latency", "tunable consistency levels"},
				[]string{"you can sacrifice partition tolerance"},
				""),
		},
		{
			question: model.Question{
				ID:         "q-be-http-cache",
				Domain:     "backend",
				Topic:      "networking",
				SubTopic:   "http",
				Difficulty: model.DifficultyEasy,
				Text:       "How does HTTP caching work between a browser and a server?",
				Tags:       []string{"http", "caching"},
				Hints: []string{
					"Which response headers control cache behavior?",
					"How does a client revalidate a stale entry?",
				},
				Active: true,
			},
			rubric: mustRubric("q-be-http-cache",
				[]string{
					"cache control headers set freshness lifetime",
					"etag or last modified enable revalidation",
					"conditional request returns not modified",
				},
				[]string{"shared caches and cdn behavior", "vary header"},
				[]string{"post responses are cached by default"},
				""),
		},
		{
			question: model.Question{
				ID:         "q-be-queue",
				Domain:     "backend",
				Topic:      "distributed-systems",
				SubTopic:   "messaging",
				Difficulty: model.DifficultyMedium,
				Text:       "Why would you put a message queue between two services, and what new problems does it introduce?",
				Tags:       []string{"messaging", "architecture"},
				Hints: []string{
					"What happens to the producer when the consumer is down?",
					"Can a message be delivered twice?",
				},
				Active: true,
			},
			rubric: mustRubric("q-be-queue",
				[]string{
					"decouples producer from consumer availability",
					"absorbs load spikes through buffering",
					"at least once delivery requires idempotent consumers",
					"ordering guarantees are limited",
				},
				[]string{"dead letter queues for poison messages", "backpressure handling"},
				[]string{"queues guarantee exactly once delivery without consumer effort"},
				""),
		},
		{
			question: model.Question{
				ID:         "q-fe-event-loop",
				Domain:     "frontend",
				Topic:      "javascript",
				SubTopic:   "runtime",
				Difficulty: model.DifficultyMedium,
				Text:       "Describe the JavaScript event loop and how promises interact with it.",
				Tags:       []string{"javascript", "async"},
				Hints: []string{
					"There is more than one task queue.",
				},
				Active: true,
			},
			rubric: mustRubric("q-fe-event-loop",
				[]string{
					"single threaded execution with a call stack",
					"task queue processed between stack runs",
					"microtask queue drains before the next task",
					"promises schedule microtasks",
				},
				[]string{"rendering happens between tasks", "starvation from long microtask chains"},
				[]string{"promises run on a separate thread"},
				""),
		},
		{
			question: model.Question{
				ID:         "q-fe-vdom",
				Domain:     "frontend",
				Topic:      "frameworks",
				Difficulty: model.DifficultyEasy,
				Text:       "What problem does a virtual DOM solve and how does reconciliation work at a high level?",
				Tags:       []string{"react", "rendering"},
				Hints: []string{
					"Direct DOM manipulation is expensive; why?",
				},
				Active: true,
			},
			rubric: mustRubric("q-fe-vdom",
				[]string{
					"in memory representation of the ui",
					"diffing computes minimal dom updates",
					"keys identify list items across renders",
				},
				[]string{"batching of updates"},
				[]string{"virtual dom is always faster than direct dom updates"},
				""),
		},
		{
			// Rubric intentionally absent; generated by the rubric worker.
			question: model.Question{
				ID:         "q-be-consistent-hashing",
				Domain:     "backend",
				Topic:      "distributed-systems",
				SubTopic:   "sharding",
				Difficulty: model.DifficultyHard,
				Text:       "Explain consistent hashing and why it helps when scaling a cache cluster.",
				Tags:       []string{"distributed", "caching"},
				Active:     true,
			},
		},
	}
}
