package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/deepsearch"
	"github.com/poiesic/deepsearch/ingest"
)

var passages = []string{
	"La fotosíntesis es el proceso por el cual las plantas convierten la luz solar en energía química.",
	"El proceso de la fotosíntesis ocurre en los cloroplastos y libera oxígeno como subproducto.",
	"La clorofila es el pigmento verde que captura la energía luminosa en las hojas.",
	"El agua hierve a cien grados Celsius al nivel del mar.",
	"La presión atmosférica disminuye con la altitud, lo que reduce el punto de ebullición del agua.",
	"El ciclo del agua comprende la evaporación, la condensación y la precipitación.",
	"Los océanos cubren aproximadamente el setenta por ciento de la superficie terrestre.",
	"La corriente del Golfo transporta agua cálida desde el Caribe hacia Europa occidental.",
	"El ADN contiene las instrucciones genéticas de todos los organismos vivos conocidos.",
	"La doble hélice del ADN fue descrita por Watson y Crick en 1953.",
	"Las mitocondrias producen la mayor parte de la energía química de la célula.",
	"Las células procariotas carecen de núcleo definido, a diferencia de las eucariotas.",
	"La velocidad de la luz en el vacío es de aproximadamente trescientos mil kilómetros por segundo.",
	"Nada que tenga masa puede alcanzar la velocidad de la luz según la relatividad especial.",
	"La teoría de la relatividad general describe la gravedad como curvatura del espacio-tiempo.",
	"Los agujeros negros son regiones donde la gravedad impide que escape incluso la luz.",
	"La Vía Láctea es una galaxia espiral que contiene más de cien mil millones de estrellas.",
	"El Sol es una estrella de tipo espectral G situada en un brazo de la Vía Láctea.",
	"Marte es conocido como el planeta rojo por el óxido de hierro de su superficie.",
	"Júpiter es el planeta más grande del sistema solar y tiene decenas de lunas.",
	"La Gran Mancha Roja de Júpiter es una tormenta que dura desde hace siglos.",
	"Los anillos de Saturno están compuestos principalmente de hielo y polvo.",
	"La Luna produce las mareas mediante su atracción gravitatoria sobre los océanos.",
	"Un eclipse solar ocurre cuando la Luna se interpone entre el Sol y la Tierra.",
	"La tabla periódica organiza los elementos químicos según su número atómico.",
	"El hidrógeno es el elemento más abundante del universo observable.",
	"El carbono forma la base de todas las moléculas orgánicas conocidas.",
	"El oxígeno constituye alrededor del veintiuno por ciento de la atmósfera terrestre.",
	"Los enlaces covalentes se forman cuando dos átomos comparten pares de electrones.",
	"La penicilina fue descubierta por Alexander Fleming en 1928.",
	"Las vacunas entrenan al sistema inmunitario para reconocer patógenos específicos.",
	"Los antibióticos no son eficaces contra las infecciones causadas por virus.",
	"El corazón humano late en promedio unas setenta veces por minuto en reposo.",
	"El cerebro humano contiene aproximadamente ochenta y seis mil millones de neuronas.",
	"Las neuronas se comunican mediante señales eléctricas y neurotransmisores químicos.",
	"La inteligencia artificial es una rama de la informática que estudia sistemas capaces de aprender.",
	"El aprendizaje automático construye modelos a partir de datos en lugar de reglas explícitas.",
	"Las redes neuronales profundas se inspiran vagamente en la estructura del cerebro.",
	"Un algoritmo es una secuencia finita de pasos bien definidos para resolver un problema.",
	"La criptografía de clave pública permite comunicaciones seguras sin secretos compartidos previos.",
	"Internet surgió de ARPANET, una red de investigación financiada en los años sesenta.",
	"El protocolo HTTP define cómo los navegadores solicitan páginas a los servidores web.",
	"La revolución industrial comenzó en Inglaterra a finales del siglo dieciocho.",
	"La imprenta de tipos móviles de Gutenberg transformó la difusión del conocimiento en Europa.",
	"La Revolución Francesa de 1789 puso fin a la monarquía absoluta en Francia.",
	"El Imperio Romano alcanzó su máxima extensión bajo el emperador Trajano.",
	"La Gran Muralla China se construyó a lo largo de varios siglos y dinastías.",
	"Los mayas desarrollaron un calendario y un sistema de escritura jeroglífica propios.",
	"El Amazonas es el río más caudaloso del mundo y atraviesa la selva tropical más extensa.",
	"El monte Everest, con 8848 metros, es la montaña más alta sobre el nivel del mar.",
	"El desierto del Sahara es el desierto cálido más grande del planeta.",
	"La Antártida contiene alrededor del setenta por ciento del agua dulce del mundo.",
	"Los terremotos se producen por la liberación súbita de energía entre placas tectónicas.",
	"La escala de Richter mide la magnitud de la energía liberada por un sismo.",
	"El efecto invernadero natural mantiene la temperatura media de la Tierra habitable.",
	"El dióxido de carbono y el metano son los principales gases de efecto invernadero.",
	"La capa de ozono absorbe la mayor parte de la radiación ultravioleta del Sol.",
	"Las energías renovables incluyen la solar, la eólica, la hidráulica y la geotérmica.",
	"La economía de mercado coordina la producción mediante precios y competencia.",
	"La inflación es el aumento sostenido del nivel general de precios de una economía.",
}

var seedFileName = flag.String("src", "", "file of seed passages")
var dbPath = flag.String("db", "./deepsearch_db", "path to the database directory")

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// ingestBatched groups passages into small documents and indexes each one.
func ingestBatched(ctx context.Context, pipeline *ingest.Pipeline, source iter.Seq[string], batchSize int) error {
	batch := make([]string, 0, batchSize)
	doc := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		name := fmt.Sprintf("seed-%03d", doc)
		if _, err := pipeline.Ingest(ctx, name, strings.Join(batch, "\n\n")); err != nil {
			return err
		}
		doc++
		batch = batch[:0]
		return nil
	}

	for line := range source {
		if strings.TrimSpace(line) == "" {
			continue
		}
		batch = append(batch, line)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}

func main() {
	system, err := deepsearch.Open(*dbPath)
	if err != nil {
		panic(err)
	}
	defer system.Close()

	pipeline, err := system.NewIngestionPipeline()
	if err != nil {
		panic(err)
	}
	defer pipeline.Release()

	ctx := context.Background()

	// Determine source of seed data
	var source iter.Seq[string]
	if seedFileName != nil && *seedFileName != "" {
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(passages)
	}

	// Index in documents of 5 passages
	if err := ingestBatched(ctx, pipeline, source, 5); err != nil {
		panic(err)
	}
}
