package main

import (
	"flag"
	"fmt"
	"log"

	"neurosurf/pkg/bem"
	"neurosurf/pkg/config"
	"neurosurf/pkg/freesurfer"
	"neurosurf/pkg/sourcespace"
	"neurosurf/pkg/stl"
	"neurosurf/pkg/surface"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "neurosurf.yaml", "Path to YAML configuration file")
	bemFile := flag.String("bem", "", "BEM file to read surfaces from")
	surfID := flag.Int("id", surface.IDUnknown, "Only read the BEM surface with this id")
	surfFile := flag.String("surf", "", "FreeSurfer surface file to read")
	sphereFile := flag.String("sphere", "", "Subject spherical registration surface (for source-space setup)")
	spacingStr := flag.String("spacing", "", "Source-space spacing: all, ico<grade> or oct<grade>")
	stlFile := flag.String("stl", "", "Export the (first) surface mesh to this STL file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *spacingStr != "" {
		cfg.SourceSpace.Spacing = *spacingStr
	}
	if *stlFile != "" {
		cfg.Output.STLFile = *stlFile
	}

	if *bemFile == "" && *surfFile == "" {
		flag.Usage()
		log.Fatal("Either -bem or -surf is required")
	}

	var surfs []*surface.Surface
	switch {
	case *bemFile != "":
		fmt.Printf("Reading BEM surfaces from %s...\n", *bemFile)
		if *surfID != surface.IDUnknown {
			s, err := bem.ReadSurfaceByID(*bemFile, cfg.Geometry.AddGeometry, *surfID)
			if err != nil {
				log.Fatalf("Failed to read BEM surface: %v", err)
			}
			surfs = []*surface.Surface{s}
		} else {
			if surfs, err = bem.ReadSurfaces(*bemFile, cfg.Geometry.AddGeometry); err != nil {
				log.Fatalf("Failed to read BEM surfaces: %v", err)
			}
		}
	case *surfFile != "":
		fmt.Printf("Reading FreeSurfer surface from %s...\n", *surfFile)
		s, err := freesurfer.ReadSurfaceGeom(*surfFile, cfg.Geometry.AddGeometry, false)
		if err != nil {
			log.Fatalf("Failed to read surface: %v", err)
		}
		surfs = []*surface.Surface{s}
	}

	for _, s := range surfs {
		fmt.Printf("\nSurface id=%d sigma=%.3f frame=%d: %d vertices, %d triangles\n",
			s.ID, s.Sigma, s.CoordFrame, s.NVerts(), s.NTris())
		if cfg.Geometry.AddGeometry {
			st := s.Stats()
			fmt.Printf("  Total area: %.6f\n", st.TotalArea)
			fmt.Printf("  Triangle area: mean %.6g, std %.6g\n", st.MeanTriArea, st.StdTriArea)
			if st.ZeroAreaTris > 0 {
				fmt.Printf("  Warning: %d zero-area triangles\n", st.ZeroAreaTris)
			}
		}
	}

	// Source-space setup against a canonical icosphere
	if *surfFile != "" && *sphereFile != "" {
		sp, err := sourcespace.ParseSpacing(cfg.SourceSpace.Spacing)
		if err != nil {
			log.Fatalf("Bad spacing: %v", err)
		}

		var ico *surface.Surface
		if sp.Type != sourcespace.SpacingAll {
			if cfg.Subjects.IcoFile != "" {
				fmt.Printf("Loading icosphere grade %d from %s...\n", sp.Grade, cfg.Subjects.IcoFile)
				ico, err = bem.GetIcoSurface(cfg.Subjects.IcoFile, sp.Grade)
			} else {
				fmt.Printf("Tessellating sphere at level %d...\n", sp.Grade)
				ico, err = surface.TessellateSphereSurface(sp.Grade, 1.0)
			}
			if err != nil {
				log.Fatalf("Failed to obtain icosphere: %v", err)
			}
			surface.NormalizeVectors(ico.Verts)
		}

		maker := sourcespace.IndexMaker(sourcespace.NewBruteIndex)
		if cfg.SourceSpace.NearestNeighbor == "kdtree" {
			maker = sourcespace.NewKDIndex
		}

		fmt.Printf("\nSetting up source space (%s)...\n", sp)
		src, err := sourcespace.CreateSpacing(*surfFile, *sphereFile, sp, ico, maker)
		if err != nil {
			log.Fatalf("Source space setup failed: %v", err)
		}
		fmt.Printf("Source space: %d / %d vertices in use\n", src.NUse, src.NVerts())
		surfs = []*surface.Surface{src}
	}

	if cfg.Output.STLFile != "" && len(surfs) > 0 {
		fmt.Printf("\nExporting mesh to %s...\n", cfg.Output.STLFile)
		if err := stl.SaveToSTL(cfg.Output.STLFile, stl.FromSurface(surfs[0])); err != nil {
			log.Fatalf("STL export failed: %v", err)
		}
	}
}
